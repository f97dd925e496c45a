package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"fleet_dashboard/internal/dashboard"
	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/service"
	"fleet_dashboard/internal/stream"
)

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, _ string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(context.Context, string, string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockSelection struct {
	sel   models.Selection
	token models.Token
	err   error
}

func (m *mockSelection) Current() (models.Selection, models.Token) { return m.sel, m.token }

func (m *mockSelection) SelectEntity(_ context.Context, id string) (models.Token, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.sel.EntityID = id
	m.token++
	return m.token, nil
}

func (m *mockSelection) SelectDateRange(_ context.Context, start, end time.Time) (models.Token, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.sel.DateRange = models.DateRange{Start: start, End: end}
	m.token++
	return m.token, nil
}

func (m *mockSelection) Select(_ context.Context, sel models.Selection) (models.Token, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.sel = sel
	m.token++
	return m.token, nil
}

// mockDashboard hands out the fixed view and lets tests push more.
type mockDashboard struct {
	mu   sync.Mutex
	view dashboard.View
	subs []chan dashboard.View
}

func (m *mockDashboard) View() dashboard.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *mockDashboard) Subscribe() (<-chan dashboard.View, func()) {
	ch := make(chan dashboard.View, 4)
	m.mu.Lock()
	ch <- m.view
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch, func() {}
}

func (m *mockDashboard) push(v dashboard.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = v
	for _, ch := range m.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

type mockDirectory struct {
	vehicles []models.VehicleSummary
	err      error
}

func (m *mockDirectory) Vehicles(context.Context) ([]models.VehicleSummary, error) {
	return m.vehicles, m.err
}

func (m *mockDirectory) Run(context.Context, time.Duration) {}

type mockReports struct {
	msg string
	err error
}

func (m *mockReports) SendFailureReport(context.Context) (string, error) { return m.msg, m.err }

type mockEventLog struct {
	resp []models.DashboardEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.DashboardEvent, error) {
	m.last = f
	return m.resp, m.err
}

type mockStream struct {
	ch chan stream.Envelope
}

func (m *mockStream) Subscribe() (<-chan stream.Envelope, func()) { return m.ch, func() {} }

// ---- Shared Test Helpers ----

const testToken = "tok"

func newTestRouter(s *service.Service) *gin.Engine {
	if s.Authorization == nil {
		s.Authorization = &mockAuth{parseID: 1}
	}
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// serve runs one request through r with a bearer token and optional JSON body.
func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
