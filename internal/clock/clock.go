// Package clock abstracts wall-clock time so schedule and expiry logic can be
// tested with a fixed instant.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed returns a Clock pinned to the given instant.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
