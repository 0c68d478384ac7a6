// Package idgen generates identifiers used for jobs, markers, and request
// correlation. Job ids are time-sortable (UUID v7) so job listings and log
// streams naturally order by creation time.
package idgen

import "github.com/google/uuid"

// NewJobID returns a new time-sortable identifier suitable for request ids
// and job ids.
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock or entropy source is broken;
		// fall back to a random v4 rather than propagating an error from an
		// id generator.
		return uuid.NewString()
	}
	return id.String()
}

// NewMarkerToken returns a short opaque token used inside a `(src:<token>)`
// correlation marker. It does not need to be time-sortable, just unique.
func NewMarkerToken() string {
	return uuid.New().String()
}
