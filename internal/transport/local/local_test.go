package local

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"hearthsync/internal/snapshot"
	"hearthsync/internal/transport"
)

// Fixed vectors; the response hash must be deterministic for a given
// key/challenge/body triple.
func TestCommandResponse_FixedVectors(t *testing.T) {
	cases := []struct {
		apiKey    string
		challenge string
		body      string
		want      string
	}{
		{"key123", "CHAL", "command=power&value=1", "082c936777e4a856b59a3e94c3773b5add4ffcd789eb18509c10941ddc9195d8"},
		{"key123", "CHAL2", "command=power&value=1", "27a918f43c3516499ea5f425e3edc019a21967a5f180ea2141f8742d47afd099"},
		{"abcdef0123", "deadbeef", "command=fanspeed&value=3", "72d877216f803b8ffed47df84c69bc61647f66f958f12613068e6f4f2480b57c"},
	}
	for _, tc := range cases {
		got := commandResponse(tc.apiKey, tc.challenge, tc.body)
		if got != tc.want {
			t.Errorf("commandResponse(%q, %q, %q) = %s, want %s", tc.apiKey, tc.challenge, tc.body, got, tc.want)
		}
		if again := commandResponse(tc.apiKey, tc.challenge, tc.body); again != got {
			t.Errorf("commandResponse not deterministic")
		}
	}
}

func TestSendCommand_PostsSignedForm(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_challenge":
			w.Write([]byte("CHAL\n"))
		case "/post":
			if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Errorf("content-type = %q", ct)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			gotForm = r.PostForm
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), "key123", "user-9")
	challenge, err := c.FetchChallenge(context.Background())
	if err != nil {
		t.Fatalf("FetchChallenge: %v", err)
	}
	if challenge != "CHAL" {
		t.Fatalf("challenge = %q, want trimmed CHAL", challenge)
	}
	if err := c.SendCommand(context.Background(), "power", 1, challenge); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	if gotForm.Get("command") != "power" || gotForm.Get("value") != "1" {
		t.Errorf("form command/value = %q/%q", gotForm.Get("command"), gotForm.Get("value"))
	}
	if gotForm.Get("user") != "user-9" {
		t.Errorf("form user = %q", gotForm.Get("user"))
	}
	want := commandResponse("key123", "CHAL", "command=power&value=1")
	if gotForm.Get("response") != want {
		t.Errorf("form response = %q, want %q", gotForm.Get("response"), want)
	}
}

func TestPoll_ParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/poll" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"power":1,"thermostat":0,"height":2,"errors":[4]}`))
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), "k", "u")
	snap, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n, ok := snap.Int(snapshot.FieldHeight); !ok || n != 2 {
		t.Errorf("height = %d, %v", n, ok)
	}
}

func TestErrors_SurfacedNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), "k", "u")
	_, err := c.Poll(context.Background())
	var terr *transport.Error
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want transport.Error with status 500", err)
	}
	if calls != 1 {
		t.Fatalf("local transport must not retry, got %d calls", calls)
	}
}
