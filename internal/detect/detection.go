package detect

// Detection sources.
const (
	SourceRegex      = "regex"
	SourceDictionary = "dictionary"
)

// Detection is one candidate or accepted implicit link. Start and End are byte
// offsets into the scanned text, end exclusive.
type Detection struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Display string `json:"display"`
	Key     string `json:"key,omitempty"`
	Target  string `json:"target"`
	Source  string `json:"source"`
}

// Len returns the span length in bytes.
func (d Detection) Len() int {
	return d.End - d.Start
}

// overlaps reports whether two spans share at least one byte.
func (d Detection) overlaps(o Detection) bool {
	return d.Start < o.End && o.Start < d.End
}
