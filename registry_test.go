package modlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseSpec(t *testing.T, text string) *LogSpecification {
	t.Helper()
	spec, err := ParseSpec(text)
	require.NoError(t, err)
	return spec
}

func TestRegistry_CurrentAndReplace(t *testing.T) {
	t.Run("seeded at generation one", func(t *testing.T) {
		reg := NewRegistry(mustParseSpec(t, "info"))
		snap := reg.Current()
		assert.Equal(t, uint64(1), snap.Generation())
		assert.Equal(t, LevelInfo, snap.Spec().DefaultLevel())
	})

	t.Run("replace bumps generation by one", func(t *testing.T) {
		reg := NewRegistry(mustParseSpec(t, "info"))
		snap := reg.Replace(mustParseSpec(t, "debug"))
		assert.Equal(t, uint64(2), snap.Generation())
		assert.Equal(t, LevelDebug, reg.Current().Spec().DefaultLevel())
	})

	t.Run("held snapshot survives replacement", func(t *testing.T) {
		reg := NewRegistry(mustParseSpec(t, "info"))
		held := reg.Current()
		reg.Replace(mustParseSpec(t, "off"))

		assert.Equal(t, LevelInfo, held.Spec().DefaultLevel())
		assert.True(t, held.Generation() < reg.Current().Generation())
	})
}

func TestRegistry_ConcurrentPublish(t *testing.T) {
	const (
		replacers = 1000
		readers   = 100
	)

	specA := mustParseSpec(t, "info,a.b=debug")
	specB := mustParseSpec(t, "warn,a.b=trace")
	reg := NewRegistry(specA)

	var wg sync.WaitGroup
	torn := make(chan string, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := reg.Current()
				spec := snap.Spec()
				// Every observable specification must be exactly one of
				// the two published values, never a mixture.
				if spec != specA && spec != specB {
					torn <- "unknown specification observed"
					return
				}
				switch spec.DefaultLevel() {
				case LevelInfo:
					if !spec.Enabled("a.b", LevelDebug) || spec.Enabled("a.b", LevelTrace) {
						torn <- "torn read of specA"
						return
					}
				case LevelWarn:
					if !spec.Enabled("a.b", LevelTrace) {
						torn <- "torn read of specB"
						return
					}
				}
			}
		}()
	}

	for i := 0; i < replacers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				reg.Replace(specB)
			} else {
				reg.Replace(specA)
			}
		}(i)
	}

	wg.Wait()
	close(torn)
	for msg := range torn {
		t.Fatal(msg)
	}

	// 1 seed + 1000 replacements, each bumping by exactly one.
	assert.Equal(t, uint64(1+replacers), reg.Current().Generation())
}
