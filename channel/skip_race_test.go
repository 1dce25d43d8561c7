//go:build race

package channel

import "testing"

// skipRace skips tests running on channel.Pipe. The lfq SPSC queue orders its data
// and index through store-release/load-acquire on different variables, which the race
// detector cannot follow, so it reports false positives.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: SPSC uses cross-variable memory ordering")
}
