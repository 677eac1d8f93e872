// Source identification and classification.

package profile

import (
	"fmt"
	"slices"
)

// Source identifies where a profile was discovered.
type Source string

// Known sources.
const (
	SourceTherapistDirectory Source = "psychology_today"
	SourceBusinessListings   Source = "google_maps"
	SourceInstagram          Source = "instagram"
)

// Kind categorizes a source by how it is crawled.
type Kind string

// Source kinds.
const (
	KindDirectory Kind = "directory"
	KindSocial    Kind = "social"
)

var sourceKinds = map[Source]Kind{
	SourceTherapistDirectory: KindDirectory,
	SourceBusinessListings:   KindDirectory,
	SourceInstagram:          KindSocial,
}

// Kind returns the category of the source, or "" when unknown.
func (s Source) Kind() Kind { return sourceKinds[s] }

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	_, ok := sourceKinds[s]
	return ok
}

func (s Source) String() string { return string(s) }

// Sources returns all known sources in a stable order.
func Sources() []Source {
	out := make([]Source, 0, len(sourceKinds))
	for s := range sourceKinds {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// ParseSource converts a name into a Source.
func ParseSource(name string) (Source, error) {
	s := Source(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", name)
	}
	return s, nil
}
