// Package testutil provides the float-comparison helper pkg/netcode's tests
// lean on: nearly every invariant in that package (multiplier clamps,
// interpolated positions, rewound coordinates) is a float64 compared against
// an expected value within a small tolerance, not an exact equality.
package testutil

import (
	"math"
)

// TestingT is a minimal interface satisfied by *testing.T and *testing.B.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// AssertFloatEqual checks if two float64 values are equal within epsilon.
func AssertFloatEqual(t TestingT, got, want, epsilon float64, msgAndArgs ...interface{}) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: got %f, want %f (epsilon %f)", msgAndArgs[0], got, want, epsilon)
		} else {
			t.Errorf("got %f, want %f (epsilon %f)", got, want, epsilon)
		}
	}
}
