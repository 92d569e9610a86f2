package domain

// Text limits shared by the contracts and the record constructors. Lengths
// count characters (runes), except MaxPasswordBytes.
const (
	MaxName       = 255
	MaxShortName  = 100
	MaxText       = 5000
	MaxURL        = 2048
	MaxLicense    = 50
	MinPassword   = 8
	MaxHeatNumber = 99
	MaxPenalty    = 3600

	// MaxPasswordBytes is the most bcrypt accepts.
	MaxPasswordBytes = 72
)
