package types

import (
	"fmt"
	"strings"
)

// GeocodeFailedError is returned when a region string yields no coordinate.
// It signals caller input the service cannot act on, not an internal fault.
type GeocodeFailedError struct {
	Region string
}

func (e *GeocodeFailedError) Error() string {
	return fmt.Sprintf("geocode: no coordinates found for region %q", e.Region)
}

// CategoryNotFoundError is returned when a theme filter empties the candidate
// pool. ValidThemes carries a sample of accepted cat1 values so the caller
// can see the mismatch.
type CategoryNotFoundError struct {
	Theme       string
	ValidThemes []string
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("no places found for category %q; valid categories include: %s",
		e.Theme, strings.Join(e.ValidThemes, ", "))
}
