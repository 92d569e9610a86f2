package domain

import (
	"encoding/json"
	"strings"
	"time"

	"raceline/internal/types"
)

// BibLabelWidth is the zero-padded width bib numbers are displayed with.
const BibLabelWidth = 3

type AthleteAttrs struct {
	ID            int64             `json:"id" mapstructure:"id"`
	FirstName     string            `json:"first_name" mapstructure:"first_name"`
	LastName      string            `json:"last_name" mapstructure:"last_name"`
	Gender        types.Gender      `json:"gender" mapstructure:"gender"`
	Country       types.CountryCode `json:"country" mapstructure:"country"`
	LicenseNumber string            `json:"license_number,omitempty" mapstructure:"license_number"`
	CreatedAt     time.Time         `json:"created_at" mapstructure:"created_at"`
}

type Athlete struct{ a AthleteAttrs }

func NewAthlete(a AthleteAttrs) (Athlete, error) {
	c := newChecker("athlete")
	c.id("id", a.ID)
	c.text("first_name", a.FirstName, MaxShortName)
	c.text("last_name", a.LastName, MaxShortName)
	c.enum("gender", a.Gender.Valid(), a.Gender)
	c.enum("country", a.Country.Valid(), a.Country)
	c.optionalText("license_number", a.LicenseNumber, MaxLicense)
	c.timestamp("created_at", a.CreatedAt)
	if err := c.err(); err != nil {
		return Athlete{}, err
	}
	return Athlete{a: a}, nil
}

func (a Athlete) ID() int64                    { return a.a.ID }
func (a Athlete) FirstName() string            { return a.a.FirstName }
func (a Athlete) LastName() string             { return a.a.LastName }
func (a Athlete) Gender() types.Gender         { return a.a.Gender }
func (a Athlete) Country() types.CountryCode   { return a.a.Country }
func (a Athlete) LicenseNumber() string        { return a.a.LicenseNumber }
func (a Athlete) CreatedAt() time.Time         { return a.a.CreatedAt }
func (a Athlete) Attrs() AthleteAttrs          { return a.a }
func (a Athlete) MarshalJSON() ([]byte, error) { return json.Marshal(a.a) }

// DisplayName renders the start-list form: upper-cased last name, first name.
func (a Athlete) DisplayName() string { return displayName(a.a.FirstName, a.a.LastName) }

func displayName(first, last string) string {
	return strings.TrimSpace(strings.ToUpper(last) + " " + first)
}

func (a Athlete) Summary() AthleteSummary {
	return AthleteSummary{a: AthleteSummaryAttrs{
		ID:        a.a.ID,
		FirstName: a.a.FirstName,
		LastName:  a.a.LastName,
		Country:   a.a.Country,
	}}
}

type AthleteSummaryAttrs struct {
	ID        int64             `json:"id" mapstructure:"id"`
	FirstName string            `json:"first_name" mapstructure:"first_name"`
	LastName  string            `json:"last_name" mapstructure:"last_name"`
	Country   types.CountryCode `json:"country" mapstructure:"country"`
}

type AthleteSummary struct{ a AthleteSummaryAttrs }

func NewAthleteSummary(a AthleteSummaryAttrs) (AthleteSummary, error) {
	c := newChecker("athlete summary")
	c.id("id", a.ID)
	c.text("first_name", a.FirstName, MaxShortName)
	c.text("last_name", a.LastName, MaxShortName)
	c.enum("country", a.Country.Valid(), a.Country)
	if err := c.err(); err != nil {
		return AthleteSummary{}, err
	}
	return AthleteSummary{a: a}, nil
}

func (a AthleteSummary) ID() int64                    { return a.a.ID }
func (a AthleteSummary) FirstName() string            { return a.a.FirstName }
func (a AthleteSummary) LastName() string             { return a.a.LastName }
func (a AthleteSummary) Country() types.CountryCode   { return a.a.Country }
func (a AthleteSummary) Attrs() AthleteSummaryAttrs   { return a.a }
func (a AthleteSummary) MarshalJSON() ([]byte, error) { return json.Marshal(a.a) }
func (a AthleteSummary) DisplayName() string          { return displayName(a.a.FirstName, a.a.LastName) }

// ParticipationAttrs carries a race participation. The athlete fields come from
// the athletes join every participation read applies.
type ParticipationAttrs struct {
	ID               int64             `json:"id" mapstructure:"id"`
	RaceID           int64             `json:"race_id" mapstructure:"race_id"`
	AthleteID        int64             `json:"athlete_id" mapstructure:"athlete_id"`
	BibNumber        types.BibNumber   `json:"bib_number" mapstructure:"bib_number"`
	AthleteFirstName string            `json:"athlete_first_name" mapstructure:"athlete_first_name"`
	AthleteLastName  string            `json:"athlete_last_name" mapstructure:"athlete_last_name"`
	AthleteCountry   types.CountryCode `json:"athlete_country" mapstructure:"athlete_country"`
	CreatedAt        time.Time         `json:"created_at" mapstructure:"created_at"`
}

type Participation struct{ a ParticipationAttrs }

func NewParticipation(a ParticipationAttrs) (Participation, error) {
	c := newChecker("participation")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	c.id("athlete_id", a.AthleteID)
	checkBib(c, "bib_number", a.BibNumber)
	c.text("athlete_last_name", a.AthleteLastName, MaxShortName)
	c.enum("athlete_country", a.AthleteCountry.Valid(), a.AthleteCountry)
	c.timestamp("created_at", a.CreatedAt)
	if err := c.err(); err != nil {
		return Participation{}, err
	}
	return Participation{a: a}, nil
}

func checkBib(c *checker, field string, b types.BibNumber) {
	if !b.Valid() {
		c.fail(field, "must be between 1 and 9999")
	}
}

func (p Participation) ID() int64                         { return p.a.ID }
func (p Participation) RaceID() int64                     { return p.a.RaceID }
func (p Participation) AthleteID() int64                  { return p.a.AthleteID }
func (p Participation) BibNumber() types.BibNumber        { return p.a.BibNumber }
func (p Participation) AthleteFirstName() string          { return p.a.AthleteFirstName }
func (p Participation) AthleteLastName() string           { return p.a.AthleteLastName }
func (p Participation) AthleteCountry() types.CountryCode { return p.a.AthleteCountry }
func (p Participation) CreatedAt() time.Time              { return p.a.CreatedAt }
func (p Participation) Attrs() ParticipationAttrs         { return p.a }
func (p Participation) MarshalJSON() ([]byte, error)      { return json.Marshal(p.a) }

// BibLabel is the bib number zero-padded to BibLabelWidth.
func (p Participation) BibLabel() string { return p.a.BibNumber.Padded(BibLabelWidth) }

func (p Participation) AthleteDisplayName() string {
	return displayName(p.a.AthleteFirstName, p.a.AthleteLastName)
}

func (p Participation) Summary() ParticipationSummary {
	return ParticipationSummary{a: ParticipationSummaryAttrs{
		ID:              p.a.ID,
		RaceID:          p.a.RaceID,
		BibNumber:       p.a.BibNumber,
		AthleteLastName: p.a.AthleteLastName,
		AthleteCountry:  p.a.AthleteCountry,
	}}
}

type ParticipationSummaryAttrs struct {
	ID              int64             `json:"id" mapstructure:"id"`
	RaceID          int64             `json:"race_id" mapstructure:"race_id"`
	BibNumber       types.BibNumber   `json:"bib_number" mapstructure:"bib_number"`
	AthleteLastName string            `json:"athlete_last_name" mapstructure:"athlete_last_name"`
	AthleteCountry  types.CountryCode `json:"athlete_country" mapstructure:"athlete_country"`
}

type ParticipationSummary struct{ a ParticipationSummaryAttrs }

func NewParticipationSummary(a ParticipationSummaryAttrs) (ParticipationSummary, error) {
	c := newChecker("participation summary")
	c.id("id", a.ID)
	c.id("race_id", a.RaceID)
	checkBib(c, "bib_number", a.BibNumber)
	c.text("athlete_last_name", a.AthleteLastName, MaxShortName)
	c.enum("athlete_country", a.AthleteCountry.Valid(), a.AthleteCountry)
	if err := c.err(); err != nil {
		return ParticipationSummary{}, err
	}
	return ParticipationSummary{a: a}, nil
}

func (p ParticipationSummary) ID() int64                         { return p.a.ID }
func (p ParticipationSummary) RaceID() int64                     { return p.a.RaceID }
func (p ParticipationSummary) BibNumber() types.BibNumber        { return p.a.BibNumber }
func (p ParticipationSummary) AthleteLastName() string           { return p.a.AthleteLastName }
func (p ParticipationSummary) AthleteCountry() types.CountryCode { return p.a.AthleteCountry }
func (p ParticipationSummary) Attrs() ParticipationSummaryAttrs  { return p.a }
func (p ParticipationSummary) MarshalJSON() ([]byte, error)      { return json.Marshal(p.a) }
func (p ParticipationSummary) BibLabel() string                  { return p.a.BibNumber.Padded(BibLabelWidth) }
