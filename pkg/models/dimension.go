package models

import (
	"fmt"
	"strings"
	"time"
)

// DimensionKind names a dimension table.
type DimensionKind string

const (
	DimensionCompany  DimensionKind = "dim_company"
	DimensionLocation DimensionKind = "dim_location"
	DimensionRole     DimensionKind = "dim_role"
	DimensionPortal   DimensionKind = "dim_portal"
	DimensionDate     DimensionKind = "dim_date"
	DimensionSkill    DimensionKind = "dim_skill"
)

// String returns the table name of the dimension.
func (k DimensionKind) String() string {
	return string(k)
}

// Dimension is a natural-keyed reference row shared by all facts.
// Pointer attributes are updatable: nil means "leave the stored value unchanged".
type Dimension interface {
	Kind() DimensionKind
	// NaturalKey renders the uniqueness criterion for logs and audit details.
	NaturalKey() string
	// Validate reports a malformed or empty natural key.
	Validate() error
	// SetID records the surrogate id once the row is resolved.
	SetID(id int64)
}

// Company is keyed by company name.
type Company struct {
	ID      int64   `json:"company_id"`
	Name    string  `json:"company_name"`
	Size    *int    `json:"company_size,omitempty"`
	Profile *string `json:"company_profile,omitempty"`
}

func (c *Company) Kind() DimensionKind { return DimensionCompany }
func (c *Company) NaturalKey() string  { return c.Name }
func (c *Company) SetID(id int64)      { c.ID = id }

func (c *Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company name is required")
	}
	return nil
}

// Location is keyed by the (city, country) pair.
type Location struct {
	ID        int64    `json:"location_id"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (l *Location) Kind() DimensionKind { return DimensionLocation }
func (l *Location) NaturalKey() string  { return l.City + ", " + l.Country }
func (l *Location) SetID(id int64)      { l.ID = id }

func (l *Location) Validate() error {
	if strings.TrimSpace(l.City) == "" || strings.TrimSpace(l.Country) == "" {
		return fmt.Errorf("location requires both city and country")
	}
	return nil
}

// Role is keyed by role name.
type Role struct {
	ID   int64  `json:"role_id"`
	Name string `json:"role_name"`
}

func (r *Role) Kind() DimensionKind { return DimensionRole }
func (r *Role) NaturalKey() string  { return r.Name }
func (r *Role) SetID(id int64)      { r.ID = id }

func (r *Role) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("role name is required")
	}
	return nil
}

// Portal is keyed by job portal name.
type Portal struct {
	ID   int64  `json:"portal_id"`
	Name string `json:"portal_name"`
}

func (p *Portal) Kind() DimensionKind { return DimensionPortal }
func (p *Portal) NaturalKey() string  { return p.Name }
func (p *Portal) SetID(id int64)      { p.ID = id }

func (p *Portal) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("portal name is required")
	}
	return nil
}

// DateLayout is the calendar date format accepted on input records.
const DateLayout = "2006-01-02"

// CalendarDate is keyed by the calendar date. Its descriptive fields are
// derived from the date and rewritten on every resolution.
type CalendarDate struct {
	ID        int64     `json:"date_id"`
	Date      time.Time `json:"full_date"`
	DayOfWeek string    `json:"day_of_week"`
	MonthName string    `json:"month_name"`
	Year      int       `json:"year"`
}

// NewCalendarDate truncates t to its calendar day and derives the descriptive fields.
func NewCalendarDate(t time.Time) *CalendarDate {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &CalendarDate{
		Date:      d,
		DayOfWeek: d.Weekday().String(),
		MonthName: d.Month().String(),
		Year:      d.Year(),
	}
}

// ParseCalendarDate parses a YYYY-MM-DD string into a CalendarDate.
func ParseCalendarDate(s string) (*CalendarDate, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return NewCalendarDate(t), nil
}

func (d *CalendarDate) Kind() DimensionKind { return DimensionDate }
func (d *CalendarDate) NaturalKey() string  { return d.Date.Format(DateLayout) }
func (d *CalendarDate) SetID(id int64)      { d.ID = id }

func (d *CalendarDate) Validate() error {
	if d.Date.IsZero() {
		return fmt.Errorf("calendar date is required")
	}
	return nil
}

// Skill is keyed by exact skill name.
type Skill struct {
	ID       int64   `json:"skill_id"`
	Name     string  `json:"skill_name"`
	Category *string `json:"skill_category,omitempty"`
}

func (s *Skill) Kind() DimensionKind { return DimensionSkill }
func (s *Skill) NaturalKey() string  { return s.Name }
func (s *Skill) SetID(id int64)      { s.ID = id }

func (s *Skill) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("skill name is required")
	}
	return nil
}
