package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hearthsync/internal/logger"
	"hearthsync/internal/repository"
	"hearthsync/internal/session"
	"hearthsync/internal/snapshot"
	"hearthsync/internal/transport"
)

type memSessionStore struct {
	cookies    map[string]string
	generation uint64
	email      string
	password   string
}

func (f *memSessionStore) SaveSession(_ context.Context, c map[string]string, g uint64) error {
	f.cookies, f.generation = c, g
	return nil
}
func (f *memSessionStore) LoadSession(context.Context) (map[string]string, uint64, error) {
	return f.cookies, f.generation, nil
}
func (f *memSessionStore) SaveCredentials(_ context.Context, e, p string) error {
	f.email, f.password = e, p
	return nil
}
func (f *memSessionStore) LoadCredentials(context.Context) (string, string, error) {
	return f.email, f.password, nil
}
func (f *memSessionStore) ClearCredentials(context.Context) error {
	f.email, f.password = "", ""
	return nil
}

var _ repository.SessionRepo = (*memSessionStore)(nil)

// newLoggedInClient points both the session manager and the cloud client at
// the same test relay and performs an initial login.
func newLoggedInClient(t *testing.T, relay *httptest.Server) (*Client, *session.Manager) {
	t.Helper()
	sess := session.NewManager(relay.URL+"/a/login", &memSessionStore{}, true, logger.Get(logger.ErrorLevel))
	if err := sess.Login(context.Background(), "me@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return NewClient(relay.URL, sess), sess
}

func TestPoll_CoercesStringNumerics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/login":
			w.Header().Add("Set-Cookie", "auth_cookie=abc")
		case "/a/SER123/apppoll":
			if c, err := r.Cookie("auth_cookie"); err != nil || c.Value != "abc" {
				t.Errorf("poll missing session cookie")
			}
			w.Write([]byte(`{"power":"1","thermostat":"0","fanspeed":"3","errors":["64"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, _ := newLoggedInClient(t, srv)
	snap, err := c.Poll(context.Background(), "SER123")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n, ok := snap.Int(snapshot.FieldFanSpeed); !ok || n != 3 {
		t.Errorf("fanspeed = %d, %v; want 3", n, ok)
	}
}

func TestLongPoll_ChangedTimeoutAndDropped(t *testing.T) {
	var mode string
	var gotEtag string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/login":
			w.Header().Add("Set-Cookie", "auth_cookie=abc")
		case "/a/SER123/applongpoll":
			gotEtag = r.Header.Get("If-None-Match")
			switch mode {
			case "changed":
				w.Header().Set("Etag", "tok-2")
				w.Write([]byte(`{"power":"1"}`))
			case "timeout":
				w.Header().Set("Etag", "tok-2")
				w.WriteHeader(http.StatusRequestTimeout)
			case "dropped":
				// no Etag header: the relay never answered this one
				w.WriteHeader(http.StatusRequestTimeout)
			}
		}
	}))
	defer srv.Close()

	c, _ := newLoggedInClient(t, srv)

	mode = "changed"
	res, err := c.LongPoll(context.Background(), "SER123", "tok-1")
	if err != nil {
		t.Fatalf("LongPoll changed: %v", err)
	}
	if !res.Changed || res.Etag != "tok-2" {
		t.Fatalf("changed result = %+v", res)
	}
	if gotEtag != "tok-1" {
		t.Fatalf("If-None-Match = %q, want tok-1", gotEtag)
	}

	mode = "timeout"
	res, err = c.LongPoll(context.Background(), "SER123", "tok-2")
	if err != nil {
		t.Fatalf("LongPoll timeout: %v", err)
	}
	if res.Changed || res.Etag != "tok-2" {
		t.Fatalf("timeout result = %+v", res)
	}

	mode = "dropped"
	_, err = c.LongPoll(context.Background(), "SER123", "tok-2")
	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("dropped result err = %v, want transport.Error", err)
	}
}

func TestSendCommand_RefreshesOnceOn403(t *testing.T) {
	var commandCalls, loginCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/login":
			loginCalls++
			w.Header().Add("Set-Cookie", "auth_cookie=gen"+string(rune('0'+loginCalls)))
		case "/a/SER123/APIKEY/apppost":
			commandCalls++
			if commandCalls == 1 {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			body := make([]byte, 64)
			n, _ := r.Body.Read(body)
			if string(body[:n]) != "height=3" {
				t.Errorf("command body = %q", string(body[:n]))
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c, sess := newLoggedInClient(t, srv)
	if err := c.SendCommand(context.Background(), "SER123", "APIKEY", "height", 3); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if commandCalls != 2 {
		t.Fatalf("command calls = %d, want 2 (original + one retry)", commandCalls)
	}
	if loginCalls != 2 {
		t.Fatalf("login calls = %d, want 2 (initial + refresh)", loginCalls)
	}
	if sess.Generation() != 2 {
		t.Fatalf("generation = %d, want bumped by refresh", sess.Generation())
	}
}

func TestSendCommand_SecondForbiddenSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/login":
			w.Header().Add("Set-Cookie", "auth_cookie=x")
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c, _ := newLoggedInClient(t, srv)
	err := c.SendCommand(context.Background(), "SER123", "APIKEY", "power", 0)
	if !errors.Is(err, transport.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestEnumDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/login":
			w.Header().Add("Set-Cookie", "auth_cookie=x")
		case "/a/enumlocations":
			w.Write([]byte(`{"locations":[{"location_id":"L1","location_name":"Home"}]}`))
		case "/a/enumfireplaces":
			if r.URL.Query().Get("location_id") != "L1" {
				t.Errorf("location_id = %q", r.URL.Query().Get("location_id"))
			}
			w.Write([]byte(`{"fireplaces":[{"serial":"SER123","name":"Living room","apikey":"APIKEY"}]}`))
		}
	}))
	defer srv.Close()

	c, _ := newLoggedInClient(t, srv)
	locs, err := c.EnumLocations(context.Background())
	if err != nil || len(locs) != 1 || locs[0].ID != "L1" {
		t.Fatalf("EnumLocations = %v, %v", locs, err)
	}
	fps, err := c.EnumFireplaces(context.Background(), "L1")
	if err != nil || len(fps) != 1 || fps[0].Serial != "SER123" || fps[0].APIKey != "APIKEY" {
		t.Fatalf("EnumFireplaces = %v, %v", fps, err)
	}
}
