package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/session"
	"hearthsync/internal/transport/cloud"
)

type memSessionRepo struct {
	cookies    map[string]string
	generation uint64
	email, pw  string
}

func (r *memSessionRepo) SaveSession(_ context.Context, cookies map[string]string, generation uint64) error {
	r.cookies, r.generation = cookies, generation
	return nil
}

func (r *memSessionRepo) LoadSession(context.Context) (map[string]string, uint64, error) {
	return r.cookies, r.generation, nil
}

func (r *memSessionRepo) SaveCredentials(_ context.Context, email, password string) error {
	r.email, r.pw = email, password
	return nil
}

func (r *memSessionRepo) LoadCredentials(context.Context) (string, string, error) {
	return r.email, r.pw, nil
}

func (r *memSessionRepo) ClearCredentials(context.Context) error {
	r.email, r.pw = "", ""
	return nil
}

type stubDirectory struct {
	locations  []cloud.Location
	fireplaces map[string][]cloud.Fireplace
	err        error
}

func (d *stubDirectory) EnumLocations(context.Context) ([]cloud.Location, error) {
	return d.locations, d.err
}

func (d *stubDirectory) EnumFireplaces(_ context.Context, locationID string) ([]cloud.Fireplace, error) {
	return d.fireplaces[locationID], d.err
}

type appendEventRepo struct {
	events []models.FireplaceEvent
}

func (r *appendEventRepo) Append(_ context.Context, e models.FireplaceEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *appendEventRepo) List(context.Context, time.Time, time.Time, string, string) ([]models.FireplaceEvent, error) {
	return r.events, nil
}

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "auth_cookie=tok1; Path=/")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAccountService(t *testing.T, dir *stubDirectory) (*AccountService, *stubRegistry, *stubApplianceRepo, *appendEventRepo) {
	t.Helper()
	srv := loginServer(t)
	sess := session.NewManager(srv.URL, &memSessionRepo{}, false, logger.Get(logger.ErrorLevel))
	reg := newStubRegistry()
	appliances := &stubApplianceRepo{}
	events := &appendEventRepo{}
	svc := NewAccountService(sess, dir, reg, appliances, events, logger.Get(logger.ErrorLevel))
	return svc, reg, appliances, events
}

func TestLoginResumesCloudAndLogsEvent(t *testing.T) {
	svc, reg, _, events := newAccountService(t, &stubDirectory{})

	if err := svc.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if reg.resumed != 1 {
		t.Fatalf("cloud polling not resumed, resumed=%d", reg.resumed)
	}
	if len(events.events) != 1 || events.events[0].Type != models.EventLogin {
		t.Fatalf("login event missing: %v", events.events)
	}
	st := svc.Status()
	if !st.LoggedIn || st.Generation != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestDiscoverRequiresLogin(t *testing.T) {
	svc, _, _, _ := newAccountService(t, &stubDirectory{})
	if _, err := svc.Discover(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestDiscoverRegistersFireplaces(t *testing.T) {
	dir := &stubDirectory{
		locations: []cloud.Location{{ID: "loc1", Name: "Home"}},
		fireplaces: map[string][]cloud.Fireplace{
			"loc1": {
				{Serial: "FP-1", Name: "Living room", APIKey: "key1"},
				{Serial: "FP-2", Name: "Den", APIKey: "key2"},
			},
		},
	}
	svc, reg, appliances, _ := newAccountService(t, dir)
	ctx := context.Background()
	if err := svc.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	found, err := svc.Discover(ctx)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 fireplaces, got %d", len(found))
	}
	if found[0].LocationName != "Home" {
		t.Fatalf("location name lost: %+v", found[0])
	}
	if len(appliances.saved) != 2 || appliances.saved[0].APIKey != "key1" {
		t.Fatalf("identities not persisted: %+v", appliances.saved)
	}
	if len(reg.added) != 2 {
		t.Fatalf("controllers not registered: %+v", reg.added)
	}
	if _, err := reg.Get("FP-2"); err != nil {
		t.Fatalf("controller missing after discovery: %v", err)
	}
}

func TestLogoutDropsSession(t *testing.T) {
	svc, _, _, _ := newAccountService(t, &stubDirectory{})
	ctx := context.Background()
	if err := svc.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.Logout(ctx)
	if svc.Status().LoggedIn {
		t.Fatal("still logged in after logout")
	}
}
