package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"hearthsync/internal/models"
	"hearthsync/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type dispatchedCommand struct {
	serial string
	name   string
	value  int
}

type mockFireplace struct {
	onErr       error
	offErr      error
	commandErr  error
	refreshErr  error
	onCalls     []string
	offCalls    []string
	refreshed   []string
	lastCommand dispatchedCommand
	commands    int
}

func (m *mockFireplace) On(_ context.Context, serial string) error {
	m.onCalls = append(m.onCalls, serial)
	return m.onErr
}
func (m *mockFireplace) Off(_ context.Context, serial string) error {
	m.offCalls = append(m.offCalls, serial)
	return m.offErr
}
func (m *mockFireplace) Command(_ context.Context, serial, name string, value int) error {
	m.commands++
	m.lastCommand = dispatchedCommand{serial, name, value}
	return m.commandErr
}
func (m *mockFireplace) Refresh(_ context.Context, serial string) error {
	m.refreshed = append(m.refreshed, serial)
	return m.refreshErr
}

type mockMonitoring struct {
	states map[string]models.DeviceState
	list   []models.ApplianceIdentity
	err    error
}

func (m *mockMonitoring) GetState(_ context.Context, serial string) (models.DeviceState, error) {
	if m.err != nil {
		return models.DeviceState{}, m.err
	}
	st, ok := m.states[serial]
	if !ok {
		return models.DeviceState{}, errors.New("unknown appliance serial")
	}
	return st, nil
}

func (m *mockMonitoring) List(context.Context) ([]models.ApplianceIdentity, error) {
	return m.list, m.err
}

type mockEventLog struct {
	resp       []models.FireplaceEvent
	err        error
	lastFilter service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.FireplaceEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

type mockAccount struct {
	loginErr    error
	discoverErr error
	found       []service.DiscoveredFireplace
	status      service.AccountStatus
	lastEmail   string
	logouts     int
}

func (m *mockAccount) Login(_ context.Context, email, password string) error {
	m.lastEmail = email
	return m.loginErr
}
func (m *mockAccount) Logout(context.Context) { m.logouts++ }
func (m *mockAccount) Discover(context.Context) ([]service.DiscoveredFireplace, error) {
	return m.found, m.discoverErr
}
func (m *mockAccount) Status() service.AccountStatus { return m.status }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// testServices returns a Service whose auth middleware accepts any bearer token.
func testServices() (*service.Service, *mockFireplace, *mockMonitoring, *mockEventLog, *mockAccount) {
	fp := &mockFireplace{}
	mon := &mockMonitoring{states: map[string]models.DeviceState{}}
	logs := &mockEventLog{}
	acct := &mockAccount{}
	s := &service.Service{
		Fireplace:     fp,
		Monitoring:    mon,
		EventLog:      logs,
		Account:       acct,
		Authorization: &mockAuth{parseID: 1, genTokenToken: "tok"},
	}
	return s, fp, mon, logs, acct
}

func doRequest(r *gin.Engine, method, path, body string, authorized bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer any-token")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
