package domain

import "strings"

// Gender is the self-described gender of a subject.
type Gender string

const (
	GenderWoman       Gender = "woman"
	GenderMan         Gender = "man"
	GenderTransgender Gender = "transgender"
	GenderNonBinary   Gender = "non-binary"
	GenderNoResponse  Gender = "no-response"
)

// Valid reports whether g is one of the known values.
func (g Gender) Valid() bool {
	switch g {
	case GenderWoman, GenderMan, GenderTransgender, GenderNonBinary, GenderNoResponse:
		return true
	}
	return false
}

// SexAtBirth is the sex assigned to a subject at birth.
type SexAtBirth string

const (
	SexWoman      SexAtBirth = "woman"
	SexMan        SexAtBirth = "man"
	SexIntersex   SexAtBirth = "intersex"
	SexNotListed  SexAtBirth = "not-listed"
	SexNoResponse SexAtBirth = "no-response"
)

// Valid reports whether s is one of the known values.
func (s SexAtBirth) Valid() bool {
	switch s {
	case SexWoman, SexMan, SexIntersex, SexNotListed, SexNoResponse:
		return true
	}
	return false
}

// Subject is a person being assessed.
//
// Weight, Height, Age and BirthYear are nil when the service has no value. The service
// cannot tell an unknown age apart from one that was never provided, and it has no way
// to store a birth year of 0; both collapse to nil here.
type Subject struct {
	ID              int
	Name            string
	Weight          *float64
	Height          *float64
	Age             *int
	BirthYear       *int
	Gender          Gender
	SexAtBirth      SexAtBirth
	Characteristics string
	Tags            []string
}

// SubjectParams is the payload for creating a subject.
type SubjectParams struct {
	Name            string
	Weight          float64
	Height          float64
	BirthYear       int
	Gender          Gender
	SexAtBirth      SexAtBirth
	Characteristics string
	Tags            []string
	Consent         bool
}

// WithDefaults fills the optional fields the service expects.
func (p SubjectParams) WithDefaults() SubjectParams {
	if p.Gender == "" {
		p.Gender = GenderNoResponse
	}
	if p.SexAtBirth == "" {
		p.SexAtBirth = SexNoResponse
	}
	return p
}

// Validate checks the fields the service requires.
func (p SubjectParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if p.Weight <= 0 {
		return &ValidationError{Field: "weight", Reason: "must be > 0"}
	}
	if p.Height <= 0 {
		return &ValidationError{Field: "height", Reason: "must be > 0"}
	}
	if p.BirthYear <= 0 {
		return &ValidationError{Field: "birth_year", Reason: "must be > 0"}
	}
	if len(p.Tags) == 0 {
		return &ValidationError{Field: "tags", Reason: "at least one tag is required"}
	}
	if !p.Consent {
		return &ValidationError{Field: "consent", Reason: "subject consent is required"}
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return &ValidationError{Field: "gender", Reason: "unknown value " + string(p.Gender)}
	}
	if p.SexAtBirth != "" && !p.SexAtBirth.Valid() {
		return &ValidationError{Field: "sex_at_birth", Reason: "unknown value " + string(p.SexAtBirth)}
	}
	return nil
}
