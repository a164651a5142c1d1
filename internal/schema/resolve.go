package schema

import (
	"errors"
	"strings"
)

var (
	ErrEmptyFile         = errors.New("file has no header row")
	ErrNoDateColumn      = errors.New("no date column found")
	ErrNoLocationColumns = errors.New("no ORIGIN/DEST columns")
)

// Resolution maps each logical field to the normalized header that carries
// it in one file. Cancelled and Carrier are optional: an empty name means
// the file has no such column, cancellation defaults to 0 and the file
// contributes no carrier information.
type Resolution struct {
	Version   string
	Date      string
	Origin    string
	Dest      string
	Cancelled string
	Carrier   string
}

func (r Resolution) HasCancelled() bool { return r.Cancelled != "" }
func (r Resolution) HasCarrier() bool   { return r.Carrier != "" }

// NormalizeHeader trims and uppercases a header name.
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(h))
}

// isArtifactColumn reports whether a normalized header is a trailing
// delimiter artifact: blank, or the "Unnamed: N" name pandas gives blank
// headers when a file is round-tripped through it.
func isArtifactColumn(h string) bool {
	return h == "" || strings.HasPrefix(h, "UNNAMED")
}

// CleanHeader normalizes a header row and drops artifact columns. Later
// columns whose name duplicates an earlier one are dropped too. The returned
// index gives the source column of each kept name.
func CleanHeader(header []string) (names []string, index []int) {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = NormalizeHeader(h)
		if isArtifactColumn(h) || seen[h] {
			continue
		}
		seen[h] = true
		names = append(names, h)
		index = append(index, i)
	}
	return names, index
}

// Resolve picks the first mapping whose required fields are all present in
// headers. Headers must already be normalized.
func Resolve(headers []string, mappings []Mapping) (Resolution, error) {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	sawDate := false
	for _, m := range mappings {
		date := firstPresent(m.Date, present)
		if date == "" {
			continue
		}
		sawDate = true

		origin := firstPresent(m.Origin, present)
		dest := firstPresent(m.Dest, present)
		if origin == "" || dest == "" {
			continue
		}

		return Resolution{
			Version:   m.Version,
			Date:      date,
			Origin:    origin,
			Dest:      dest,
			Cancelled: firstPresent(m.Cancelled, present),
			Carrier:   firstPresent(m.Carrier, present),
		}, nil
	}

	if !sawDate {
		return Resolution{}, ErrNoDateColumn
	}
	return Resolution{}, ErrNoLocationColumns
}

func firstPresent(aliases []string, present map[string]bool) string {
	for _, a := range aliases {
		if present[a] {
			return a
		}
	}
	return ""
}
