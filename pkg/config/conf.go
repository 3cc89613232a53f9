package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/lookup"
	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the default run configuration file name.
	FileName = "gof.yaml"

	AssociationsKind  = "associations"
	PValuesKind       = "pvalues"
	SimilarityKind    = "similarity"
	SimilarityTopKind = "similarity_top"

	dirMode  = 0700
	fileMode = 0600
)

// Config describes one case: the inputs, the scoring settings and where the
// outputs go.
type Config struct {
	Name       string           `yaml:"name"`
	Items      string           `yaml:"items"`
	Categories string           `yaml:"categories"`
	Lookup     lookup.Paths     `yaml:"lookup,omitempty"`
	Scoring    enrich.Options   `yaml:"scoring"`
	Similarity SimilarityConfig `yaml:"similarity"`
	OutputDir  string           `yaml:"outputDir"`
}

// SimilarityConfig controls the similarity stage.
type SimilarityConfig struct {
	Enabled     bool    `yaml:"enabled"`
	TopFraction float64 `yaml:"topFraction"`
}

// Default returns the configuration of a new case.
func Default(name string) *Config {
	return &Config{
		Name:       name,
		Items:      name + "@items.tsv",
		Categories: name + "@categories.tsv",
		Scoring:    enrich.DefaultOptions(),
		Similarity: SimilarityConfig{
			Enabled:     true,
			TopFraction: similarity.TopFractionDefault,
		},
		OutputDir: ".",
	}
}

// Validate checks the configuration is complete.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if c.Name == "" {
		return errors.New("name required")
	}
	if strings.ContainsAny(c.Name, `/\@`) {
		return errors.Errorf("invalid name %q", c.Name)
	}
	if c.Items == "" || c.Categories == "" {
		return errors.New("item and category mapping files required")
	}
	if err := c.Scoring.Validate(); err != nil {
		return errors.Wrap(err, "invalid scoring")
	}
	if c.Similarity.Enabled && (c.Similarity.TopFraction <= 0 || c.Similarity.TopFraction > 1) {
		return errors.Errorf("similarity top fraction must be in (0, 1], got %v", c.Similarity.TopFraction)
	}
	return nil
}

// OutputPath returns the path of an output file of kind, <dir>/<name>@<kind>.csv.
func (c *Config) OutputPath(kind string) string {
	return filepath.Join(c.OutputDir, c.Name+"@"+kind+".csv")
}

// Save writes c to path.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", path)
	}
	return nil
}

// Load reads the configuration at path. Relative input and output paths are
// resolved against the directory of the file; missing scoring values keep
// their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file: %s", path)
	}

	c := Default("")
	c.Items, c.Categories = "", ""
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file: %s", path)
	}
	if c.Scoring.Workers <= 0 {
		c.Scoring.Workers = runtime.NumCPU()
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{
		&c.Items, &c.Categories, &c.OutputDir,
		&c.Lookup.ItemInfo, &c.Lookup.CategoryInfo, &c.Lookup.CuratedSets, &c.Lookup.Citations,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file: %s", path)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		err := os.Mkdir(dir, dirMode)
		if err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
