package repo

// Cardinality says whether a finder yields one full record or a list of
// summaries.
type Cardinality int

const (
	One Cardinality = iota + 1
	Many
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	}
	return "unknown"
}

// Methods maps finder names to their cardinality.
type Methods map[string]Cardinality

func tableMethods(extra Methods) Methods {
	m := Methods{
		"Find":     One,
		"MustFind": One,
		"FindBy":   One,
		"All":      Many,
		"Where":    Many,
		"Many":     Many,
	}
	for name, c := range extra {
		m[name] = c
	}
	return m
}
