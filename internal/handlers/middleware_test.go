package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"fleet_dashboard/internal/service"
)

// minimal router wiring only the middleware + a protected endpoint
func newMiddlewareOnlyRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil, nil)
	r.GET("/secure", h.userIdMiddleware, func(c *gin.Context) {
		uid, ok := userIDFrom(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "userId": uid})
	})
	return r
}

func TestUserIDMiddleware_Errors(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		parseErr error
		errMsg   string
	}{
		{"missing header", "", nil, errMissingAuth},
		{"invalid scheme", "Token abc", nil, errBadAuth},
		{"lowercase scheme", "bearer abc", nil, errBadAuth},
		{"bearer without token", "Bearer", nil, errBadAuth},
		{"bearer with blank token", "Bearer   ", nil, errBadAuth},
		{"expired token", "Bearer expired", errors.New("expired"), errBadToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newMiddlewareOnlyRouter(&service.Service{Authorization: &mockAuth{parseErr: tc.parseErr}})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status: got %d, want 401 (body=%s)", w.Code, w.Body.String())
			}
			var out struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.errMsg {
				t.Fatalf("error message: got %q, want %q", out.Error, tc.errMsg)
			}
		})
	}
}

func TestUserIDMiddleware_SuccessSetsUserID(t *testing.T) {
	auth := &mockAuth{parseID: 123}
	r := newMiddlewareOnlyRouter(&service.Service{Authorization: auth})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d; body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		OK     bool `json:"ok"`
		UserID int  `json:"userId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.UserID != 123 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if auth.lastParseToken != "good-token" {
		t.Fatalf("ParseToken got %q, want %q", auth.lastParseToken, "good-token")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header, token, msg string
	}{
		{"Bearer abc", "abc", ""},
		{"Bearer   abc  ", "abc", ""},
		{"", "", errMissingAuth},
		{"Basic abc", "", errBadAuth},
		{"Bearerabc", "", errBadAuth},
	}
	for _, tc := range cases {
		token, msg := bearerToken(tc.header)
		if token != tc.token || msg != tc.msg {
			t.Errorf("bearerToken(%q) = %q, %q; want %q, %q", tc.header, token, msg, tc.token, tc.msg)
		}
	}
}

func TestUserIDFrom_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := userIDFrom(c); ok {
		t.Fatalf("no id expected without the middleware")
	}
	c.Set(userIDKey, "not-an-int")
	if _, ok := userIDFrom(c); ok {
		t.Fatalf("a non-int value must not pass as an id")
	}
}
