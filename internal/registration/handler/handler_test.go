package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/platform/logger"
	"onboarding/internal/registration/models"
	"onboarding/internal/registration/service"
	"onboarding/internal/registration/store"
	"onboarding/pkg/testutil"
)

const adminToken = "secret-token"

var signupTime = time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

type noopProvisioner struct{}

func (noopProvisioner) Enqueue(context.Context, uuid.UUID) error { return nil }

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(store.NewInMemory(), noopProvisioner{}, service.WithLogger(logger.Discard()))
	r := chi.NewRouter()
	New(svc, logger.Discard(), adminToken).Register(r)
	return r
}

func register(t *testing.T, router http.Handler, email string) *models.Registration {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/registration", map[string]string{
		"organisation_name": "Acme",
		"name":              "Jane Doe",
		"email":             email,
	})
	req = testutil.WithRequestScope(req, "req-"+email, signupTime)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.Registration](t, rr)
}

func TestRegisterAndGet(t *testing.T) {
	router := newRouter(t)
	reg := register(t, router, "Jane@Acme.io")
	assert.Equal(t, "jane@acme.io", reg.Email)
	assert.False(t, reg.InfraSetupDone)
	assert.True(t, signupTime.Equal(reg.CreatedAt))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/registration/"+reg.ID.String()))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "organisation_name", "Acme")
}

func TestRegisterErrors(t *testing.T) {
	router := newRouter(t)
	register(t, router, "dup@acme.io")

	t.Run("duplicate email", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/registration", map[string]string{
			"organisation_name": "Other", "name": "Someone", "email": "dup@acme.io",
		})
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusConflict, "conflict")
	})

	t.Run("missing fields", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/registration", map[string]string{"email": "x@acme.io"})
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "validation_error")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/v1/registration", "{")
		testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusBadRequest, "bad_request")
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/registration/"+uuid.NewString()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/registration/nope"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestAdminRoutes(t *testing.T) {
	router := newRouter(t)
	register(t, router, "stuck@acme.io")

	t.Run("admin token required", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/registration/failed"))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("lists failed registrations", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/api/v1/registration/failed")
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		list := testutil.UnmarshalResponse[[]models.Registration](t, rr)
		require.Len(t, *list, 1)
		assert.Equal(t, "stuck@acme.io", (*list)[0].Email)
	})

	t.Run("deletes by email", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodDelete, "/api/v1/registration", map[string][]string{
			"emails": {"STUCK@acme.io", "ghost@acme.io"},
		})
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "count", float64(1))
	})
}
