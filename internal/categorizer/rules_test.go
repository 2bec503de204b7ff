package categorizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_Ordered(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Version)

	ordered := rules.Rules()
	require.NotEmpty(t, ordered)
	for i := 1; i < len(ordered); i++ {
		assert.LessOrEqual(t, ordered[i-1].Priority, ordered[i].Priority)
	}
}

func TestParseRules_Errors(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		err  error
	}{
		{"UnknownCategory", "rules:\n  - {name: x, pattern: FOO, category: crypto, priority: 1}\n", ErrUnknownCategory},
		{"EmptyPattern", "rules:\n  - {name: x, pattern: '', category: dining, priority: 1}\n", ErrEmptyPattern},
		{"UnknownAlias", "hint_aliases:\n  FOO: crypto\n", ErrUnknownCategory},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tc.yaml))
			assert.ErrorIs(t, err, tc.err)
		})
	}

	t.Run("InvalidRegex", func(t *testing.T) {
		_, err := ParseRules([]byte("rules:\n  - {name: x, pattern: 'regex:(', category: dining, priority: 1}\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid regex")
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		_, err := ParseRules([]byte("rules: [\n"))
		assert.Error(t, err)
	})
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "version: custom\nrules:\n  - name: bakery\n    pattern: BAKERY\n    category: dining\n    priority: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", rules.Version)
	assert.Len(t, rules.Rules(), 1)

	defaults, err := LoadRules("")
	require.NoError(t, err)
	assert.Greater(t, len(defaults.Rules()), 1)

	_, err = LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
