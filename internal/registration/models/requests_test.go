package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "onboarding/pkg/domain-errors"
)

func TestRegisterRequestValidation(t *testing.T) {
	valid := func() RegisterRequest {
		return RegisterRequest{OrganisationName: " Acme ", Name: " Jane ", Email: " Jane@Acme.io "}
	}

	t.Run("normalizes fields", func(t *testing.T) {
		req := valid()
		req.Normalize()
		assert.NoError(t, req.Validate())
		assert.Equal(t, "jane@acme.io", req.Email)
		assert.Equal(t, "Acme", req.OrganisationName)
	})

	cases := map[string]func(*RegisterRequest){
		"missing organisation": func(r *RegisterRequest) { r.OrganisationName = "  " },
		"missing name":         func(r *RegisterRequest) { r.Name = "" },
		"missing email":        func(r *RegisterRequest) { r.Email = "" },
		"malformed email":      func(r *RegisterRequest) { r.Email = "not-an-email" },
		"oversized name":       func(r *RegisterRequest) { r.Name = strings.Repeat("x", 300) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid()
			mutate(&req)
			req.Normalize()
			err := req.Validate()
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDeleteRequestDedupes(t *testing.T) {
	req := DeleteRequest{Emails: []string{"A@x.io", "a@x.io ", ""}}
	req.Normalize()
	assert.NoError(t, req.Validate())
	assert.Equal(t, []string{"a@x.io"}, req.Emails)

	empty := DeleteRequest{Emails: []string{" "}}
	empty.Normalize()
	assert.Error(t, empty.Validate())
}
