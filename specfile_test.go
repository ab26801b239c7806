package modlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpecFile = `default: info
modules:
  server.db: debug
  server.http: warn
filter: "slow"
duplicate: error
rotation:
  max_bytes: 2048
  daily: true
  retention: 5
`

func TestParseSpecFile(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		f, err := ParseSpecFile([]byte(sampleSpecFile))
		require.NoError(t, err)
		assert.Equal(t, "info", f.Default)
		assert.Equal(t, "debug", f.Modules["server.db"])
		assert.Equal(t, "slow", f.Filter)
		assert.Equal(t, "error", f.Duplicate)
		require.NotNil(t, f.Rotation)
		assert.Equal(t, int64(2048), f.Rotation.MaxBytes)
		assert.True(t, f.Rotation.Daily)
		assert.Equal(t, 5, f.Rotation.Retention)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := ParseSpecFile([]byte("default: [unclosed"))
		require.Error(t, err)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := ParseSpecFile([]byte("default: info\nmodles:\n  a: debug\n"))
		require.Error(t, err)
	})
}

func TestSpecFile_Specification(t *testing.T) {
	t.Run("converts to a specification", func(t *testing.T) {
		f, err := ParseSpecFile([]byte(sampleSpecFile))
		require.NoError(t, err)
		spec, err := f.Specification()
		require.NoError(t, err)

		assert.Equal(t, LevelInfo, spec.DefaultLevel())
		assert.Equal(t, LevelError, spec.DuplicateLevel())
		assert.True(t, spec.Enabled("server.db.pool", LevelDebug))
		assert.False(t, spec.Enabled("server.http", LevelInfo))
		assert.True(t, spec.MessageAllowed("slow query"))
		assert.False(t, spec.MessageAllowed("fast"))
	})

	t.Run("bad module level rejects whole document", func(t *testing.T) {
		f := &SpecFile{Default: "info", Modules: map[string]string{"a": "debug", "b": "shout"}}
		_, err := f.Specification()
		require.Error(t, err)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Token, "b=shout")
	})

	t.Run("bad default level", func(t *testing.T) {
		f := &SpecFile{Default: "chatty"}
		_, err := f.Specification()
		require.Error(t, err)
	})

	t.Run("bad filter pattern", func(t *testing.T) {
		f := &SpecFile{Default: "info", Filter: "(["}
		_, err := f.Specification()
		require.Error(t, err)
	})

	t.Run("empty fields default to off and no filter", func(t *testing.T) {
		f := &SpecFile{}
		spec, err := f.Specification()
		require.NoError(t, err)
		assert.Equal(t, LevelOff, spec.DefaultLevel())
		assert.Equal(t, LevelOff, spec.DuplicateLevel())
		assert.True(t, spec.MessageAllowed("anything"))
	})
}

func TestSpecFile_RoundTrip(t *testing.T) {
	spec := mustParseSpec(t, "info,server.db=debug,server.http=warn/slow").withDuplicate(LevelError)

	path := filepath.Join(t.TempDir(), "logspec.yaml")
	require.NoError(t, SpecFileFrom(spec).Save(path))

	loaded, err := LoadSpecFile(path)
	require.NoError(t, err)
	got, err := loaded.Specification()
	require.NoError(t, err)

	assert.Equal(t, spec.DefaultLevel(), got.DefaultLevel())
	assert.Equal(t, spec.DuplicateLevel(), got.DuplicateLevel())
	assert.Equal(t, spec.FilterPattern(), got.FilterPattern())
	for _, module := range []string{"server.db", "server.db.pool", "server.http", "other"} {
		for lvl := LevelError; lvl <= LevelTrace; lvl++ {
			assert.Equal(t, spec.Enabled(module, lvl), got.Enabled(module, lvl))
		}
	}
}

func TestLoadSpecFile_Missing(t *testing.T) {
	_, err := LoadSpecFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
