//go:build property
// +build property

package watcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates burst coalescing over the pure
// debouncer, without touching a real filesystem.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst yields exactly one event with the distinct paths", prop.ForAll(
		func(pathCount int, repeats int) bool {
			if pathCount < 1 || pathCount > 8 || repeats < 1 || repeats > 5 {
				return true
			}

			d := newDebouncer(40 * time.Millisecond)
			go d.run()
			defer d.stop()

			want := make(map[string]struct{}, pathCount)
			for r := 0; r < repeats; r++ {
				for i := 0; i < pathCount; i++ {
					p := fmt.Sprintf("page-%d.html", i)
					want[p] = struct{}{}
					d.add(p)
				}
			}

			var got ChangeEvent
			select {
			case got = <-d.out:
			case <-time.After(2 * time.Second):
				return false
			}

			if len(got.Paths) != len(want) {
				return false
			}
			for _, p := range got.Paths {
				if _, ok := want[p]; !ok {
					return false
				}
			}

			// The burst must have collapsed: no trailing event.
			select {
			case <-d.out:
				return false
			case <-time.After(100 * time.Millisecond):
				return true
			}
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
