package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default("case")
	assert.NoError(t, c.Validate())
	assert.Equal(t, enrich.AlphaDefault, c.Scoring.Alpha)
	assert.Equal(t, enrich.MinOverlapDefault, c.Scoring.MinOverlap)
	assert.True(t, c.Similarity.Enabled)
	assert.Equal(t, filepath.Join(".", "case@associations.csv"), c.OutputPath(AssociationsKind))
}

func TestValidate(t *testing.T) {
	var nilConfig *Config
	assert.Error(t, nilConfig.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no name", func(c *Config) { c.Name = "" }},
		{"bad name", func(c *Config) { c.Name = "a@b" }},
		{"no items", func(c *Config) { c.Items = "" }},
		{"bad alpha", func(c *Config) { c.Scoring.Alpha = 2 }},
		{"bad fraction", func(c *Config) { c.Similarity.TopFraction = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default("case")
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default("case")
	c.Similarity = SimilarityConfig{Enabled: false}
	assert.NoError(t, c.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	c := Default("case")
	c.Scoring.Alpha = 0.01
	c.Lookup.Citations = "gene2go.gz"
	c.OutputDir = "out"
	require.NoError(t, Save(path, c))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "case", got.Name)
	assert.Equal(t, 0.01, got.Scoring.Alpha)
	assert.Equal(t, c.Scoring.Workers, got.Scoring.Workers)
	assert.Equal(t, filepath.Join(dir, "case@items.tsv"), got.Items)
	assert.Equal(t, filepath.Join(dir, "gene2go.gz"), got.Lookup.Citations)
	assert.Empty(t, got.Lookup.ItemInfo)
	assert.Equal(t, filepath.Join(dir, "out", "case@pvalues.csv"), got.OutputPath(PValuesKind))
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := "name: mini\nitems: /data/items.tsv\ncategories: cats.tsv\nscoring:\n  minOverlap: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), fileMode))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/items.tsv", c.Items)
	assert.Equal(t, filepath.Join(dir, "cats.tsv"), c.Categories)
	assert.Equal(t, 3, c.Scoring.MinOverlap)
	assert.Equal(t, enrich.AlphaDefault, c.Scoring.Alpha)
	assert.Positive(t, c.Scoring.Workers)
	assert.True(t, c.Similarity.Enabled)
	assert.Equal(t, dir, c.OutputDir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [oops"), fileMode))
	_, err = Load(bad)
	assert.Error(t, err)

	incomplete := filepath.Join(dir, "incomplete.yaml")
	require.NoError(t, os.WriteFile(incomplete, []byte("name: x\n"), fileMode))
	_, err = Load(incomplete)
	assert.Error(t, err)
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", Default("x")))
	assert.Error(t, Save(filepath.Join(t.TempDir(), FileName), nil))
}

func TestGetOrCreateHomeDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, created, err := GetOrCreateHomeDir("gof")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ".gof", filepath.Base(dir))

	_, created, err = GetOrCreateHomeDir(".gof")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = GetOrCreateHomeDir("")
	assert.Error(t, err)
}
