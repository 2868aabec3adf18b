// Package local talks to the fireplace over the local network. Commands are
// authenticated with a single-use challenge and a SHA-256 response; polls are
// plain GETs. The appliance firmware is fragile, so delivery is best effort
// and callers verify effects via a follow-up poll.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"hearthsync/internal/snapshot"
	"hearthsync/internal/transport"
)

const requestTimeout = 5 * time.Second

// Client issues challenge-response commands and snapshot polls against one
// appliance. Host may be rewritten when a poll reports a new address.
type Client struct {
	mu     sync.RWMutex
	host   string
	apiKey string
	userID string
	http   *http.Client
}

func NewClient(host, apiKey, userID string) *Client {
	return &Client{
		host:   host,
		apiKey: apiKey,
		userID: userID,
		http:   &http.Client{Timeout: requestTimeout},
	}
}

// SetHost updates the appliance address after an IP change.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	c.host = host
	c.mu.Unlock()
}

func (c *Client) baseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "http://" + c.host
}

// FetchChallenge requests a single-use nonce. Nonces are consumed by the next
// command post, so callers re-fetch per command.
func (c *Client) FetchChallenge(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/get_challenge", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &transport.Error{Op: "local challenge", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &transport.Error{Op: "local challenge", StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transport.Error{Op: "local challenge", Err: err}
	}
	challenge := strings.TrimSpace(string(body))
	if challenge == "" {
		return "", &transport.Error{Op: "local challenge", Err: fmt.Errorf("empty challenge")}
	}
	return challenge, nil
}

// commandResponse computes the authentication response for a command body:
// sha256(key || sha256(key || challenge || "post:" + body)), hex-encoded.
func commandResponse(apiKey, challenge, body string) string {
	inner := sha256.Sum256([]byte(apiKey + challenge + "post:" + body))
	outer := sha256.Sum256(append([]byte(apiKey), inner[:]...))
	return hex.EncodeToString(outer[:])
}

// SendCommand posts one authenticated command. The challenge must be fresh;
// no retry happens here. State is not mutated; the next poll confirms the
// effect, if the appliance honored it at all.
func (c *Client) SendCommand(ctx context.Context, wireName string, value int, challenge string) error {
	payload := fmt.Sprintf("command=%s&value=%d", wireName, value)
	form := url.Values{}
	form.Set("command", wireName)
	form.Set("value", fmt.Sprintf("%d", value))
	form.Set("user", c.userID)
	form.Set("response", commandResponse(c.apiKey, challenge, payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/post", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return &transport.Error{Op: "local command", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &transport.Error{Op: "local command", StatusCode: resp.StatusCode}
	}
	return nil
}

// Poll fetches the appliance's status snapshot.
func (c *Client) Poll(ctx context.Context) (snapshot.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/poll", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transport.Error{Op: "local poll", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &transport.Error{Op: "local poll", StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Op: "local poll", Err: err}
	}
	return snapshot.Parse(body)
}
