package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/semsync/pkg/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	got, err := config.Load(fs, "/etc/semsync/settings.hcl")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSettings(), got)
}

func TestLoad(t *testing.T) {
	src := `
enabled            = true
highlight_priority = 100
filetypes          = ["go", "**/*.tmpl"]
combined_modifiers = ["readonly"]
debounce_ms        = 50
span_threshold     = 25
expand_above       = 1.0
expand_below       = 1.0
`
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/settings.hcl", []byte(src), 0o644))

	got, err := config.Load(fs, "/settings.hcl")
	require.NoError(t, err)

	assert.True(t, got.Enabled)
	assert.Equal(t, 100, got.HighlightPriority)
	assert.Equal(t, []string{"go", "**/*.tmpl"}, got.FiletypePatterns)
	assert.Equal(t, []string{"readonly"}, got.CombinedModifiers)
	assert.Equal(t, 50*time.Millisecond, got.DebounceInterval)
	assert.Equal(t, 25, got.SpanThreshold)
	// Unset keys keep their defaults.
	assert.Equal(t, config.DefaultRetryDelay, got.RetryDelay)
	assert.Equal(t, config.DefaultWaitTimeout, got.WaitTimeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "negative_priority",
			src:  "highlight_priority = -1\n",
		},
		{
			name: "zero_threshold",
			src:  "span_threshold = 0\n",
		},
		{
			name: "bad_pattern",
			src:  "filetypes = [\"[\"]\n",
		},
		{
			name: "bad_syntax",
			src:  "enabled = \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/settings.hcl", []byte(tt.src), 0o644))
			_, err := config.Load(fs, "/settings.hcl")
			require.Error(t, err)
		})
	}
}

func TestEnabledFor(t *testing.T) {
	s := config.DefaultSettings()
	s.FiletypePatterns = []string{"go", "**/*.tmpl"}

	assert.True(t, s.EnabledFor("go", "/src/main.go"))
	assert.True(t, s.EnabledFor("template", "/src/views/page.tmpl"))
	assert.False(t, s.EnabledFor("rust", "/src/main.rs"))

	s.FiletypePatterns = nil
	assert.True(t, s.EnabledFor("anything", "/any/where"))

	s.Enabled = false
	assert.False(t, s.EnabledFor("go", "/src/main.go"))
}

func TestStoreReloadNotifiesSubscribers(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/settings.hcl", []byte("enabled = false\n"), 0o644))

	store := config.NewStore(fs, "/settings.hcl", config.DefaultSettings())
	require.True(t, store.Current().Enabled)

	var seen []bool
	store.Subscribe(func(s config.Settings) {
		seen = append(seen, s.Enabled)
	})

	require.NoError(t, store.Reload(context.Background()))
	assert.False(t, store.Current().Enabled)

	require.NoError(t, afero.WriteFile(fs, "/settings.hcl", []byte("enabled = true\n"), 0o644))
	require.NoError(t, store.Reload(context.Background()))
	assert.True(t, store.Current().Enabled)

	assert.Equal(t, []bool{false, true}, seen)
}

func TestStoreFailedReloadKeepsCurrent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/settings.hcl", []byte("span_threshold = -5\n"), 0o644))

	store := config.NewStore(fs, "/settings.hcl", config.DefaultSettings())

	notified := 0
	store.Subscribe(func(config.Settings) { notified++ })

	require.Error(t, store.Reload(context.Background()))
	assert.Equal(t, config.DefaultSettings(), store.Current())
	assert.Zero(t, notified)
}
