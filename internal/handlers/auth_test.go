package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleet_dashboard/internal/service"
)

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_SignUpAndSignIn(t *testing.T) {
	auth := &mockAuth{signUpID: 42, genTokenToken: "tok123", parseID: 1}
	r := newTestRouter(&service.Service{Authorization: auth})

	w := postJSON(r, "/auth/sign-up", `{"username":"u","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sign-up status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if int(m["id"].(float64)) != 42 {
		t.Fatalf("expected id=42, got %v", m["id"])
	}

	w = postJSON(r, "/auth/sign-in", `{"username":"u","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status=%d, body=%s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["token"] != "tok123" {
		t.Fatalf("expected token tok123, got %v", m["token"])
	}

	if w = postJSON(r, "/auth/sign-in", `{"username":1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
}

func TestAuthHandlers_Failures(t *testing.T) {
	tests := []struct {
		name string
		auth *mockAuth
		path string
		want int
	}{
		{"duplicate user", &mockAuth{signUpErr: service.ErrUserExists}, "/auth/sign-up", http.StatusConflict},
		{"weak password", &mockAuth{signUpErr: service.ErrInvalidPassword}, "/auth/sign-up", http.StatusBadRequest},
		{"bad credentials", &mockAuth{genTokenErr: errors.New("nope")}, "/auth/sign-in", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: tc.auth})
			if w := postJSON(r, tc.path, `{"username":"u","password":"p"}`); w.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
