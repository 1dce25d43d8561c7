//go:build !race

package channel

import "testing"

func skipRace(testing.TB) {}
