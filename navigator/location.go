package navigator

import (
	"net/url"
	"strconv"
)

// Location is the addressable position of a running questionnaire:
// chart=<name>&question=<node id>&claim=<text>, plus an optional version.
type Location struct {
	Chart    string
	Question string
	Claim    string
	Version  int
}

// ParseLocation reads a location from query parameters. Unparseable versions
// are treated as the live graph.
func ParseLocation(q url.Values) Location {
	loc := Location{
		Chart:    q.Get("chart"),
		Question: q.Get("question"),
		Claim:    q.Get("claim"),
	}
	if v, err := strconv.Atoi(q.Get("version")); err == nil && v > 0 {
		loc.Version = v
	}
	return loc
}

// Query encodes the location as query parameters.
func (l Location) Query() url.Values {
	q := url.Values{}
	q.Set("chart", l.Chart)
	q.Set("question", l.Question)
	q.Set("claim", l.Claim)
	if l.Version > 0 {
		q.Set("version", strconv.Itoa(l.Version))
	}
	return q
}

// String returns the encoded query string.
func (l Location) String() string { return l.Query().Encode() }
