// Package cloud talks to the relay service the fireplace is registered with.
// Requests carry the account session cookies; a 403 on a command triggers one
// credential refresh and retry before the failure surfaces.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hearthsync/internal/session"
	"hearthsync/internal/snapshot"
	"hearthsync/internal/transport"
)

const (
	requestTimeout = 10 * time.Second
	// The relay holds a long poll open for up to ~63s; leave slack so the
	// client-side timeout only fires on genuinely dead connections.
	longPollTimeout = 70 * time.Second
)

// Client issues relay calls for one account. Poll/LongPoll/SendCommand are
// per-appliance (addressed by serial); login and discovery are account-wide.
type Client struct {
	baseURL  string
	session  *session.Manager
	http     *http.Client
	longHTTP *http.Client
}

func NewClient(baseURL string, sess *session.Manager) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		session:  sess,
		http:     &http.Client{Timeout: requestTimeout},
		longHTTP: &http.Client{Timeout: longPollTimeout},
	}
}

// Location is one site registered under the account.
type Location struct {
	ID   string `json:"location_id"`
	Name string `json:"location_name"`
}

// Fireplace is one appliance registered at a location.
type Fireplace struct {
	Serial string `json:"serial"`
	Name   string `json:"name"`
	APIKey string `json:"apikey"`
}

func (c *Client) get(ctx context.Context, client *http.Client, op, path string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.session.Apply(req)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &transport.Error{Op: op, Err: err}
	}
	return resp, nil
}

// EnumLocations lists the account's registered sites.
func (c *Client) EnumLocations(ctx context.Context) ([]Location, error) {
	resp, err := c.get(ctx, c.http, "cloud enumlocations", "/a/enumlocations", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("cloud enumlocations", resp); err != nil {
		return nil, err
	}
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return out.Locations, nil
}

// EnumFireplaces lists the appliances registered at one location, including
// their per-appliance API keys.
func (c *Client) EnumFireplaces(ctx context.Context, locationID string) ([]Fireplace, error) {
	resp, err := c.get(ctx, c.http, "cloud enumfireplaces", "/a/enumfireplaces?location_id="+locationID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("cloud enumfireplaces", resp); err != nil {
		return nil, err
	}
	var out struct {
		Fireplaces []Fireplace `json:"fireplaces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fireplaces: %w", err)
	}
	return out.Fireplaces, nil
}

// Poll fetches a full snapshot for one appliance. Numeric fields arrive as
// text through this path; the snapshot coercion helpers absorb that.
func (c *Client) Poll(ctx context.Context, serial string) (snapshot.Snapshot, error) {
	resp, err := c.get(ctx, c.http, "cloud poll", "/a/"+serial+"/apppoll", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus("cloud poll", resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Op: "cloud poll", Err: err}
	}
	return snapshot.Parse(body)
}

// LongPollResult distinguishes the three long-poll outcomes: a changed
// snapshot, a relay-side timeout (Etag still present), or a connection
// dropped by the network, which surfaces as an error instead.
type LongPollResult struct {
	Changed  bool
	Snapshot snapshot.Snapshot
	Etag     string
}

// LongPoll blocks until the relay observes a state change or times out
// (~63s). previousEtag, when non-empty, is forwarded as If-None-Match so the
// relay only answers for changes past that token. A response missing the Etag
// header means the connection was cut by the network (e.g. a dead NAT
// binding), not answered by the relay, and is surfaced as a TransportError.
func (c *Client) LongPoll(ctx context.Context, serial, previousEtag string) (LongPollResult, error) {
	header := http.Header{}
	if previousEtag != "" {
		header.Set("If-None-Match", previousEtag)
	}
	resp, err := c.get(ctx, c.longHTTP, "cloud longpoll", "/a/"+serial+"/applongpoll", header)
	if err != nil {
		return LongPollResult{}, err
	}
	defer resp.Body.Close()

	etag := resp.Header.Get("Etag")

	switch resp.StatusCode {
	case http.StatusOK:
		if etag == "" {
			return LongPollResult{}, &transport.Error{Op: "cloud longpoll", Err: errors.New("response without change token")}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return LongPollResult{}, &transport.Error{Op: "cloud longpoll", Err: err}
		}
		snap, err := snapshot.Parse(body)
		if err != nil {
			return LongPollResult{}, err
		}
		return LongPollResult{Changed: true, Snapshot: snap, Etag: etag}, nil
	case http.StatusRequestTimeout:
		if etag == "" {
			// Terminated mid-flight; the relay always includes the token
			// on its own timeouts.
			return LongPollResult{}, &transport.Error{Op: "cloud longpoll", Err: errors.New("connection dropped")}
		}
		return LongPollResult{Changed: false, Etag: etag}, nil
	case http.StatusForbidden:
		return LongPollResult{}, fmt.Errorf("cloud longpoll: %w", transport.ErrInvalidCredentials)
	default:
		return LongPollResult{}, &transport.Error{Op: "cloud longpoll", StatusCode: resp.StatusCode}
	}
}

// SendCommand posts one command through the relay. A 403 triggers a single
// credential refresh and retry; a second rejection surfaces as
// ErrInvalidCredentials. The relay is known to silently drop commands, so
// callers verify effects via polling.
func (c *Client) SendCommand(ctx context.Context, serial, apiKey, wireName string, value int) error {
	send := func() (int, error) {
		body := fmt.Sprintf("%s=%d", wireName, value)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/a/"+serial+"/"+apiKey+"/apppost", strings.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		c.session.Apply(req)
		resp, err := c.http.Do(req)
		if err != nil {
			return 0, &transport.Error{Op: "cloud command", Err: err}
		}
		defer resp.Body.Close()
		return resp.StatusCode, nil
	}

	status, err := send()
	if err != nil {
		return err
	}
	if status == http.StatusForbidden {
		if err := c.session.Refresh(ctx); err != nil {
			return err
		}
		if status, err = send(); err != nil {
			return err
		}
		if status == http.StatusForbidden {
			return fmt.Errorf("cloud command: %w", transport.ErrInvalidCredentials)
		}
	}
	if status < 200 || status > 299 {
		return &transport.Error{Op: "cloud command", StatusCode: status}
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", op, transport.ErrInvalidCredentials)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &transport.Error{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}
