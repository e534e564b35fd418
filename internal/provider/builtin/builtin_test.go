package builtin

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/normalize"
	"github.com/dotcommander/papermate/internal/provider"
)

func TestRegistryNames(t *testing.T) {
	names := Registry().Names()
	require.True(t, slices.IsSorted(names))
	require.Subset(t, names, []string{"alibaba", "claude", "deepseek", "openai", "google", "openrouter", "azure", "bedrock", "vercel"})
}

func TestListModels(t *testing.T) {
	r := Registry()
	cfg := config.ProviderConfig{APIKey: "k", BaseURL: "https://x/v1"}
	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			e, _ := r.Lookup(name)
			models := e.Models
			// google and bedrock set up cloud SDK clients on construction.
			if name != "google" && name != "bedrock" {
				client, err := r.New(name, cfg, provider.Settings{})
				require.NoError(t, err)
				models = client.ListModels()
				require.Equal(t, e.Models, models)
			}

			require.NotEmpty(t, models)
			seen := map[string]struct{}{}
			for _, m := range models {
				require.NotEmpty(t, m)
				_, dup := seen[m]
				require.False(t, dup, "duplicate model %q", m)
				seen[m] = struct{}{}
			}
		})
	}
}

func TestEntries(t *testing.T) {
	r := Registry()
	for _, name := range r.Names() {
		e, ok := r.Lookup(name)
		require.True(t, ok)
		require.True(t, normalize.Supported(e.Policy), name)
		require.NotEmpty(t, e.BaseURL, name)
		require.NotEmpty(t, e.Model, name)
		require.Contains(t, e.Models, e.Model, name)
	}
}

func TestUnknownProvider(t *testing.T) {
	_, err := Registry().New("nonexistent", config.ProviderConfig{APIKey: "k", BaseURL: "https://x"}, provider.Settings{})
	require.ErrorIs(t, err, errs.ErrUnsupportedProvider)
}

func TestDefaults(t *testing.T) {
	defaults := Registry().Defaults()
	require.Len(t, defaults, len(Registry().Names()))
	for _, d := range defaults {
		require.NotEmpty(t, d.Name)
		require.NotEmpty(t, d.BaseURL)
	}
}
