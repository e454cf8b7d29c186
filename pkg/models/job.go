package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-jobmart/pkg/jsonutil"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// JobAttributes are the raw, pre-enrichment columns of a job posting.
// Natural keys of the five fact dimensions are required; everything else is
// optional and a nil value never overwrites a stored one.
type JobAttributes struct {
	Company        string   `json:"company" validate:"required"`
	CompanySize    *int     `json:"company_size,omitempty" validate:"omitempty,gte=0"`
	CompanyProfile *string  `json:"company_profile,omitempty"`
	City           string   `json:"location" validate:"required"`
	Country        string   `json:"country" validate:"required"`
	Latitude       *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Role           string   `json:"role" validate:"required"`
	Portal         string   `json:"job_portal" validate:"required"`
	PostingDate    string   `json:"job_posting_date" validate:"required,datetime=2006-01-02"`

	Title            *string `json:"job_title,omitempty"`
	Description      *string `json:"job_description,omitempty"`
	Experience       *string `json:"experience,omitempty"`
	Qualifications   *string `json:"qualifications,omitempty"`
	SalaryRange      *string `json:"salary_range,omitempty"`
	WorkType         *string `json:"work_type,omitempty"`
	Preference       *string `json:"preference,omitempty"`
	ContactPerson    *string `json:"contact_person,omitempty"`
	Contact          *string `json:"contact,omitempty"`
	Responsibilities *string `json:"responsibilities,omitempty"`
	Benefits         *string `json:"benefits,omitempty"`
}

// JobRecord is one enriched input record, as produced by the enrichment step.
// Skills are already split into individual names.
type JobRecord struct {
	JobID string `json:"job_id" validate:"required"`
	JobAttributes

	Skills         []string      `json:"skills" validate:"dive,required"`
	KeyPhrases     []KeyPhrase   `json:"key_phrases" validate:"dive"`
	Entities       []NamedEntity `json:"entities" validate:"dive"`
	SentimentScore *float64      `json:"sentiment_score,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// UnmarshalJSON accepts job_id as a string or a bare number.
func (r *JobRecord) UnmarshalJSON(data []byte) error {
	type plain JobRecord
	aux := struct {
		*plain
		JobID jsonutil.FlexibleString `json:"job_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.JobID = string(aux.JobID)
	return nil
}

// Validate checks required fields and value ranges. The returned error wraps
// apperrors.ErrValidation and names every offending field.
func (r *JobRecord) Validate() error {
	if r == nil {
		return apperrors.Validationf("record is nil")
	}
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validationf("%v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
	}
	return apperrors.Validationf("invalid fields: %s", strings.Join(fields, ", "))
}

// Job is the stored job_fact row.
type Job struct {
	JobID         string `json:"job_id"`
	CompanyID     int64  `json:"company_id"`
	LocationID    int64  `json:"location_id"`
	RoleID        int64  `json:"role_id"`
	PortalID      int64  `json:"portal_id"`
	PostingDateID int64  `json:"posting_date_id"`

	Title            *string `json:"job_title,omitempty"`
	Description      *string `json:"job_description,omitempty"`
	Experience       *string `json:"experience,omitempty"`
	Qualifications   *string `json:"qualifications,omitempty"`
	SalaryRange      *string `json:"salary_range,omitempty"`
	WorkType         *string `json:"work_type,omitempty"`
	Preference       *string `json:"preference,omitempty"`
	ContactPerson    *string `json:"contact_person,omitempty"`
	Contact          *string `json:"contact,omitempty"`
	Responsibilities *string `json:"responsibilities,omitempty"`
	Benefits         *string `json:"benefits,omitempty"`

	// Derived at upsert time.
	SalaryMin      decimal.NullDecimal `json:"salary_min"`
	SalaryMax      decimal.NullDecimal `json:"salary_max"`
	SentimentScore *float64            `json:"sentiment_score,omitempty"`
	SentimentLabel *string             `json:"sentiment_label,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
