package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"onboarding/internal/platform/logger"
	"onboarding/internal/provisioning/outputs"
	dErrors "onboarding/pkg/domain-errors"
)

// fakeAPI records calls in arrival order and enforces bearer auth.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	bodies   []map[string]any
	token    string
	password string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login/admin", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.record(r.URL.Path, body)
		if body["password"] != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})
	mux.HandleFunc("POST /api/registries", f.authed(func(w http.ResponseWriter, _ map[string]any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7})
	}))
	mux.HandleFunc("POST /api/clusters", f.authed(func(w http.ResponseWriter, body map[string]any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "c-" + body["name"].(string), "name": body["name"]})
	}))
	return mux
}

func (f *fakeAPI) authed(next func(http.ResponseWriter, map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.record(r.URL.Path, body)
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		next(w, body)
	}
}

func (f *fakeAPI) record(path string, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	f.bodies = append(f.bodies, body)
}

func (f *fakeAPI) snapshot() ([]string, []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]map[string]any(nil), f.bodies...)
}

type ClientSuite struct {
	suite.Suite
	api    *fakeAPI
	server *httptest.Server
	creds  Credentials
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.api = &fakeAPI{token: "opaque-token", password: "admin@123"}
	s.server = httptest.NewServer(s.api.handler())
	s.T().Cleanup(s.server.Close)
	s.creds = Credentials{Email: "admin", Password: "admin@123"}
}

func (s *ClientSuite) newClient(opts ...ClientOption) *Client {
	return NewClient(s.server.URL, s.creds, append([]ClientOption{WithClientLogger(logger.Discard())}, opts...)...)
}

func (s *ClientSuite) TestCallOrdering() {
	ctx := context.Background()

	s.Run("registry before login is a state error", func() {
		_, err := s.newClient().CreateRegistry(ctx, "http://r/nifi-registry")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeState))
		calls, _ := s.api.snapshot()
		s.Empty(calls)
	})

	s.Run("cluster before login is a state error", func() {
		_, err := s.newClient().CreateCluster(ctx, "http://w/nifi", "Development", "7")
		s.True(dErrors.HasCode(err, dErrors.CodeState))
	})

	s.Run("after login registry id feeds cluster creation", func() {
		client := s.newClient()
		s.Require().NoError(client.Login(ctx))

		id, err := client.CreateRegistry(ctx, "http://r/nifi-registry")
		s.Require().NoError(err)
		s.Equal("7", id)

		cluster, err := client.CreateCluster(ctx, "http://w/nifi", "Development", id)
		s.Require().NoError(err)
		s.Equal("c-Development", cluster.ID)

		_, bodies := s.api.snapshot()
		last := bodies[len(bodies)-1]
		s.Equal("7", last["registry_id"])
		s.Equal("http://w/nifi", last["target_url"])
		s.Equal(false, last["approver_enable"])
		s.Equal("", last["tag"])
	})
}

func (s *ClientSuite) TestLoginRejected() {
	s.creds.Password = "wrong"
	err := s.newClient().Login(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuth))
}

func (s *ClientSuite) TestExpiredSession() {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))
	s.Require().NoError(err)
	s.api.token = signed

	clock := now
	client := s.newClient(WithClock(func() time.Time { return clock }))
	s.Require().NoError(client.Login(context.Background()))

	_, err = client.CreateRegistry(context.Background(), "http://r")
	s.Require().NoError(err)

	clock = now.Add(2 * time.Minute)
	_, err = client.CreateRegistry(context.Background(), "http://r")
	s.True(dErrors.HasCode(err, dErrors.CodeState))
}

func (s *ClientSuite) TestBootstrapSequence() {
	b := New(s.creds, WithLogger(logger.Discard()), WithWarmup(0))
	err := b.Bootstrap(context.Background(), outputs.Endpoints{
		UIURL:       s.server.URL,
		WorkerURLs:  []string{"http://w0/nifi", "http://w1/nifi"},
		RegistryURL: "http://r/nifi-registry",
	})
	s.Require().NoError(err)
	calls, bodies := s.api.snapshot()
	s.Equal([]string{"/api/login/admin", "/api/registries", "/api/clusters", "/api/clusters"}, calls)
	s.Equal("Development", bodies[2]["name"])
	s.Equal("Staging", bodies[3]["name"])
	s.Equal("http://w1/nifi", bodies[3]["nifi_url"])
}

func (s *ClientSuite) TestBootstrapHonoursWarmupCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(s.creds, WithLogger(logger.Discard()), WithWarmup(time.Hour))
	err := b.Bootstrap(ctx, outputs.Endpoints{UIURL: s.server.URL})
	s.Require().Error(err)
	calls, _ := s.api.snapshot()
	s.Empty(calls)
}

func (s *ClientSuite) TestServerErrorIsProvisioningFailure() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, s.creds, WithClientLogger(logger.Discard())).Login(context.Background())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeProvisioning))
	s.False(dErrors.HasCode(err, dErrors.CodeAuth))
}

func TestClusterName(t *testing.T) {
	if ClusterName(0) != "Development" || ClusterName(1) != "Staging" || ClusterName(2) != "Cluster 3" {
		t.Fatalf("unexpected cluster names: %s %s %s", ClusterName(0), ClusterName(1), ClusterName(2))
	}
}
