package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitegen/internal/build"
	"github.com/conneroisu/sitegen/internal/config"
	"github.com/conneroisu/sitegen/internal/logging"
)

func TestTitleFromDir(t *testing.T) {
	testCases := []struct {
		dir      string
		expected string
	}{
		{"my-site", "My Site"},
		{"blog", "Blog"},
		{"photo_album", "Photo Album"},
		{filepath.Join("parent", "my-site"), "My Site"},
	}

	for _, tc := range testCases {
		t.Run(tc.dir, func(t *testing.T) {
			assert.Equal(t, tc.expected, TitleFromDir(tc.dir))
		})
	}
}

func TestCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my-site")

	require.NoError(t, Create(dir))

	for _, name := range []string{
		"index.html", "style.css", "context.json", ".sitegen.yml",
		filepath.Join("templates", "header.html"),
		filepath.Join("templates", "footer.html"),
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	ctx, err := os.ReadFile(filepath.Join(dir, "context.json"))
	require.NoError(t, err)
	assert.Contains(t, string(ctx), "My Site")
}

func TestCreateRefusesNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644))

	assert.Error(t, Create(dir))
}

func TestScaffoldedSiteBuilds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo-site")
	require.NoError(t, Create(dir))

	cfg := &config.Config{
		Input:  dir,
		Output: filepath.Join(dir, "out"),
		Templates: config.TemplatesConfig{
			Dir:        "templates",
			Extensions: []string{".html", ".htm"},
			OutputExt:  ".html",
		},
	}

	report, err := build.New(cfg, logging.NewNop()).Build(context.Background(), build.FullScope())
	require.NoError(t, err)
	require.True(t, report.OK(), "failures: %v", report.Failed)

	out, err := os.ReadFile(filepath.Join(cfg.Output, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>Demo Site</h1>")
	assert.FileExists(t, filepath.Join(cfg.Output, "style.css"))

	// Shared templates never produce direct output.
	assert.NoFileExists(t, filepath.Join(cfg.Output, "templates", "header.html"))
}
