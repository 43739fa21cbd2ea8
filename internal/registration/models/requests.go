package models

import (
	"strings"

	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/email"
	liststrings "onboarding/pkg/platform/strings"
)

const maxFieldLength = 255

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	OrganisationName string `json:"organisation_name"`
	Name             string `json:"name"`
	Designation      string `json:"designation,omitempty"`
	Email            string `json:"email"`
}

func (r *RegisterRequest) Normalize() {
	r.OrganisationName = strings.TrimSpace(r.OrganisationName)
	r.Name = strings.TrimSpace(r.Name)
	r.Designation = strings.TrimSpace(r.Designation)
	r.Email = email.Normalize(r.Email)
}

func (r *RegisterRequest) Validate() error {
	switch {
	case r.OrganisationName == "":
		return dErrors.New(dErrors.CodeValidation, "organisation_name is required")
	case r.Name == "":
		return dErrors.New(dErrors.CodeValidation, "name is required")
	case r.Email == "":
		return dErrors.New(dErrors.CodeValidation, "email is required")
	case !email.Valid(r.Email):
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	for field, v := range map[string]string{
		"organisation_name": r.OrganisationName,
		"name":              r.Name,
		"designation":       r.Designation,
		"email":             r.Email,
	} {
		if len(v) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, field+" is too long")
		}
	}
	return nil
}

// DeleteRequest lists the emails of registrations to remove.
type DeleteRequest struct {
	Emails []string `json:"emails"`
}

func (r *DeleteRequest) Normalize() {
	r.Emails = liststrings.DedupeAndTrimLower(r.Emails)
}

func (r *DeleteRequest) Validate() error {
	if len(r.Emails) == 0 {
		return dErrors.New(dErrors.CodeValidation, "emails must not be empty")
	}
	return nil
}

// DeleteResponse reports how many registrations were removed.
type DeleteResponse struct {
	Count int `json:"count"`
}
