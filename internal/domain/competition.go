package domain

import (
	"encoding/json"
	"time"

	"raceline/internal/types"
)

type CompetitionAttrs struct {
	ID          int64             `json:"id" mapstructure:"id"`
	Name        string            `json:"name" mapstructure:"name"`
	Place       string            `json:"place" mapstructure:"place"`
	Country     types.CountryCode `json:"country" mapstructure:"country"`
	StartDate   time.Time         `json:"start_date" mapstructure:"start_date"`
	EndDate     time.Time         `json:"end_date" mapstructure:"end_date"`
	Description string            `json:"description,omitempty" mapstructure:"description"`
	WebpageURL  string            `json:"webpage_url,omitempty" mapstructure:"webpage_url"`
	CreatedAt   time.Time         `json:"created_at" mapstructure:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" mapstructure:"updated_at"`
}

type Competition struct{ a CompetitionAttrs }

func NewCompetition(a CompetitionAttrs) (Competition, error) {
	c := newChecker("competition")
	c.id("id", a.ID)
	checkCompetitionFields(c, a.Name, a.Place, a.Country, a.StartDate, a.EndDate)
	c.optionalText("webpage_url", a.WebpageURL, MaxURL)
	c.timestamp("created_at", a.CreatedAt)
	c.timestamp("updated_at", a.UpdatedAt)
	if err := c.err(); err != nil {
		return Competition{}, err
	}
	return Competition{a: a}, nil
}

func checkCompetitionFields(c *checker, name, place string, country types.CountryCode, start, end time.Time) {
	c.text("name", name, MaxName)
	c.text("place", place, MaxName)
	c.enum("country", country.Valid(), country)
	c.timestamp("start_date", start)
	c.timestamp("end_date", end)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		c.fail("end_date", "must not precede start_date")
	}
}

func (c Competition) ID() int64                    { return c.a.ID }
func (c Competition) Name() string                 { return c.a.Name }
func (c Competition) Place() string                { return c.a.Place }
func (c Competition) Country() types.CountryCode   { return c.a.Country }
func (c Competition) StartDate() time.Time         { return c.a.StartDate }
func (c Competition) EndDate() time.Time           { return c.a.EndDate }
func (c Competition) Description() string          { return c.a.Description }
func (c Competition) WebpageURL() string           { return c.a.WebpageURL }
func (c Competition) CreatedAt() time.Time         { return c.a.CreatedAt }
func (c Competition) UpdatedAt() time.Time         { return c.a.UpdatedAt }
func (c Competition) Attrs() CompetitionAttrs      { return c.a }
func (c Competition) MarshalJSON() ([]byte, error) { return json.Marshal(c.a) }

// IsOngoing reports whether at falls within the competition days, the end
// date included.
func (c Competition) IsOngoing(at time.Time) bool {
	return isWithinDays(at, c.a.StartDate, c.a.EndDate)
}

func isWithinDays(at, start, end time.Time) bool {
	at = at.UTC()
	return !at.Before(start) && at.Before(end.AddDate(0, 0, 1))
}

func (c Competition) Summary() CompetitionSummary {
	return CompetitionSummary{a: CompetitionSummaryAttrs{
		ID:        c.a.ID,
		Name:      c.a.Name,
		Place:     c.a.Place,
		Country:   c.a.Country,
		StartDate: c.a.StartDate,
		EndDate:   c.a.EndDate,
	}}
}

type CompetitionSummaryAttrs struct {
	ID        int64             `json:"id" mapstructure:"id"`
	Name      string            `json:"name" mapstructure:"name"`
	Place     string            `json:"place" mapstructure:"place"`
	Country   types.CountryCode `json:"country" mapstructure:"country"`
	StartDate time.Time         `json:"start_date" mapstructure:"start_date"`
	EndDate   time.Time         `json:"end_date" mapstructure:"end_date"`
}

type CompetitionSummary struct{ a CompetitionSummaryAttrs }

func NewCompetitionSummary(a CompetitionSummaryAttrs) (CompetitionSummary, error) {
	c := newChecker("competition summary")
	c.id("id", a.ID)
	checkCompetitionFields(c, a.Name, a.Place, a.Country, a.StartDate, a.EndDate)
	if err := c.err(); err != nil {
		return CompetitionSummary{}, err
	}
	return CompetitionSummary{a: a}, nil
}

func (c CompetitionSummary) ID() int64                      { return c.a.ID }
func (c CompetitionSummary) Name() string                   { return c.a.Name }
func (c CompetitionSummary) Place() string                  { return c.a.Place }
func (c CompetitionSummary) Country() types.CountryCode     { return c.a.Country }
func (c CompetitionSummary) StartDate() time.Time           { return c.a.StartDate }
func (c CompetitionSummary) EndDate() time.Time             { return c.a.EndDate }
func (c CompetitionSummary) Attrs() CompetitionSummaryAttrs { return c.a }
func (c CompetitionSummary) MarshalJSON() ([]byte, error)   { return json.Marshal(c.a) }

func (c CompetitionSummary) IsOngoing(at time.Time) bool {
	return isWithinDays(at, c.a.StartDate, c.a.EndDate)
}
