package types

import "strings"

// CountryCode is the IOC code of an ISMF member federation.
type CountryCode string

var ismfMembers = enum[CountryCode]{name: "country", values: []CountryCode{
	"AND", "ARG", "AUS", "AUT", "BEL", "BIH", "BUL", "CAN", "CHI", "CHN",
	"CRO", "CZE", "ESP", "FIN", "FRA", "GBR", "GER", "GRE", "IRI", "ITA",
	"JPN", "KAZ", "KGZ", "KOR", "LIE", "MKD", "MNE", "NED", "NOR", "NZL",
	"POL", "POR", "ROU", "SLO", "SRB", "SUI", "SVK", "SWE", "TUR", "UKR",
	"USA",
}}

// ParseCountryCode upper-cases v before checking it against the member list.
func ParseCountryCode(v any) (CountryCode, error) {
	if s, ok := asString(v); ok {
		v = strings.ToUpper(strings.TrimSpace(s))
	}
	return ismfMembers.parse(v)
}

func (c CountryCode) Valid() bool { return ismfMembers.contains(c) }
