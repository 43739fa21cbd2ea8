// Package bootstrap configures a freshly provisioned management UI: it logs
// in, registers the flow registry and attaches each worker node as a cluster.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "onboarding/pkg/domain-errors"
)

const (
	loginPath    = "/api/login/admin"
	registryPath = "/api/registries"
	clusterPath  = "/api/clusters"

	// RegistryName is the display name of the registry created for a trial.
	RegistryName = "Trial Registry"

	maxResponseBytes = 1 << 20
)

// Credentials authenticate against the management API.
type Credentials struct {
	Email    string
	Password string
}

// Cluster is the resource returned by the management API.
type Cluster struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a session bound to one management API base URL. Calls other than
// Login require a prior successful Login.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a client with a 10s call timeout unless overridden.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates and stores the bearer token. A rejected login is an
// auth error.
func (c *Client) Login(ctx context.Context) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": c.creds.Email, "password": c.creds.Password}
	status, err := c.post(ctx, loginPath, "", body, &resp)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return dErrors.Wrap(err, dErrors.CodeAuth, "management API rejected credentials")
		}
		return err
	}
	if resp.Token == "" {
		return dErrors.New(dErrors.CodeAuth, "management API returned no token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.expiresAt = tokenExpiry(resp.Token)
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "management API login succeeded", "base_url", c.baseURL)
	return nil
}

// CreateRegistry registers registryURL and returns the new registry id.
func (c *Client) CreateRegistry(ctx context.Context, registryURL string) (string, error) {
	token, err := c.session()
	if err != nil {
		return "", err
	}
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	body := map[string]any{
		"name":                      RegistryName,
		"is_registry_authenticated": false,
		"registry_url":              registryURL,
	}
	if _, err := c.post(ctx, registryPath, token, body, &resp); err != nil {
		return "", err
	}
	id := rawID(resp.ID)
	if id == "" {
		return "", dErrors.New(dErrors.CodeProvisioning, "management API returned no registry id")
	}
	return id, nil
}

// CreateCluster attaches a worker node. Governance features start disabled.
func (c *Client) CreateCluster(ctx context.Context, workerURL, name, registryID string) (*Cluster, error) {
	token, err := c.session()
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"name":                         name,
		"nifi_url":                     workerURL,
		"target_url":                   workerURL,
		"registry_id":                  registryID,
		"tag":                          "",
		"notification_enable":          false,
		"approver_enable":              false,
		"start_stop_requires_approval": false,
		"change_request_enable":        false,
	}
	var resp struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if _, err := c.post(ctx, clusterPath, token, body, &resp); err != nil {
		return nil, err
	}
	cluster := &Cluster{ID: rawID(resp.ID), Name: resp.Name}
	if cluster.Name == "" {
		cluster.Name = name
	}
	return cluster, nil
}

func (c *Client) session() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", dErrors.New(dErrors.CodeState, "login required before this call")
	}
	if !c.expiresAt.IsZero() && !c.now().Before(c.expiresAt) {
		return "", dErrors.New(dErrors.CodeState, "session expired, login again")
	}
	return c.token, nil
}

// post sends body as JSON and decodes a 2xx response into out. The returned
// status is zero when no response was received.
func (c *Client) post(ctx context.Context, path, token string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeProvisioning, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "management API timed out on "+path)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeProvisioning, "management API unreachable on "+path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, dErrors.Wrap(err, dErrors.CodeProvisioning, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, dErrors.New(dErrors.CodeProvisioning,
			fmt.Sprintf("management API returned %d on %s: %s", resp.StatusCode, path, snippet(data)))
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, dErrors.Wrap(err, dErrors.CodeProvisioning, "decode response from "+path)
		}
	}
	return resp.StatusCode, nil
}

// tokenExpiry reads exp from a JWT bearer token without verifying it. Opaque
// tokens have no known expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
