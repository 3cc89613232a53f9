package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mchmarny/gof/pkg/config"
	"github.com/mchmarny/gof/pkg/data"
	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/logging"
	"github.com/mchmarny/gof/pkg/lookup"
	"github.com/mchmarny/gof/pkg/mapping"
	"github.com/mchmarny/gof/pkg/similarity"
	urfave "github.com/urfave/cli/v3"
)

const (
	dirMode = 0700

	configFlag    = "config"
	nameFlag      = "name"
	dirFlag       = "dir"
	forceFlag     = "force"
	noSaveFlag    = "no-save"
	workersFlag   = "workers"
	outputDirFlag = "output-dir"
)

// Report summarizes a pipeline run.
type Report struct {
	RunID        string                `json:"run_id,omitempty" yaml:"runId,omitempty"`
	Name         string                `json:"name" yaml:"name"`
	Associations *enrich.Summary       `json:"associations" yaml:"associations"`
	Similarity   *similarity.Summary   `json:"similarity,omitempty" yaml:"similarity,omitempty"`
	Top          *similarity.Selection `json:"top,omitempty" yaml:"top,omitempty"`
	Outputs      []string              `json:"outputs" yaml:"outputs"`
	Duration     string                `json:"duration" yaml:"duration"`
}

func newInitCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "init",
		Usage: "Write a default case configuration",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:     nameFlag,
				Usage:    "Case name, used as the output file prefix",
				Required: true,
			},
			&urfave.StringFlag{
				Name:  dirFlag,
				Usage: "Directory to write the configuration to",
				Value: ".",
			},
			&urfave.BoolFlag{
				Name:  forceFlag,
				Usage: "Overwrite an existing configuration",
			},
		},
		Action: cmdInit,
	}
}

func cmdInit(_ context.Context, cmd *urfave.Command) error {
	dir := cmd.String(dirFlag)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !cmd.Bool(forceFlag) {
		return fmt.Errorf("config %s already exists, use --%s to overwrite", path, forceFlag)
	}

	c := config.Default(cmd.String(nameFlag))
	if err := c.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, c); err != nil {
		return err
	}
	slog.Info("config created", "path", path)

	return encode(cmd, map[string]string{"config": path})
}

func newRunCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "run",
		Usage: "Score associations and similarity for a case and save the run",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  configFlag,
				Usage: "Path to the case configuration",
				Value: config.FileName,
			},
			&urfave.IntFlag{
				Name:  workersFlag,
				Usage: "Number of scoring workers (optional, overrides config)",
			},
			&urfave.StringFlag{
				Name:  outputDirFlag,
				Usage: "Output directory (optional, overrides config)",
			},
			&urfave.BoolFlag{
				Name:  noSaveFlag,
				Usage: "Do not persist the run in the store",
			},
		},
		Action: cmdRun,
	}
}

func cmdRun(ctx context.Context, cmd *urfave.Command) error {
	c, err := config.Load(cmd.String(configFlag))
	if err != nil {
		return err
	}
	if w := cmd.Int(workersFlag); w > 0 {
		c.Scoring.Workers = w
	}
	if d := cmd.String(outputDirFlag); d != "" {
		c.OutputDir = d
	}

	var db *sql.DB
	if !cmd.Bool(noSaveFlag) {
		db = getConfig(cmd).DB
	}

	report, err := runPipeline(ctx, c, db)
	if err != nil {
		return err
	}
	return encode(cmd, report)
}

// runPipeline loads the case inputs, scores associations and similarity,
// writes the output tables and saves the run when db is set. Inputs are
// fully loaded and scored before any output is written.
func runPipeline(ctx context.Context, c *config.Config, db *sql.DB) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := slog.Default().WithGroup(c.Name)

	done := logging.Step(logger, "load")
	items, err := mapping.Load(c.Items)
	if err != nil {
		return nil, err
	}
	categories, err := mapping.Load(c.Categories)
	if err != nil {
		return nil, err
	}
	catalog, err := lookup.Load(c.Lookup)
	if err != nil {
		return nil, err
	}
	done()

	done = logging.Step(logger, "associate")
	res, err := enrich.Score(ctx, items, categories, catalog, c.Scoring)
	if err != nil {
		return nil, err
	}
	done()

	report := &Report{
		Name:         c.Name,
		Associations: res.Summary,
	}

	var sim *similarity.Result
	if c.Similarity.Enabled {
		done = logging.Step(logger, "similarity")
		sim, err = similarity.Compute(ctx, similarity.ProfileFromTable(res.Table), c.Scoring.Workers)
		if err != nil {
			return nil, err
		}
		if report.Top, err = sim.Top(c.Similarity.TopFraction); err != nil {
			return nil, err
		}
		report.Similarity = sim.Summary
		done()
	}

	done = logging.Step(logger, "write")
	if err := os.MkdirAll(c.OutputDir, dirMode); err != nil {
		return nil, fmt.Errorf("creating output dir %s: %w", c.OutputDir, err)
	}
	outputs := []output{
		{config.AssociationsKind, func(w io.Writer) error { return enrich.WriteTable(w, res.Table) }},
		{config.PValuesKind, func(w io.Writer) error { return enrich.WritePValues(w, res.Scored) }},
	}
	if sim != nil {
		outputs = append(outputs,
			output{config.SimilarityKind, func(w io.Writer) error { return similarity.WritePairs(w, sim.Pairs) }},
			output{config.SimilarityTopKind, func(w io.Writer) error { return similarity.WritePairs(w, report.Top.Pairs) }},
		)
	}
	for _, o := range outputs {
		path := c.OutputPath(o.kind)
		if err := writeOutput(path, o.write); err != nil {
			return nil, err
		}
		report.Outputs = append(report.Outputs, path)
	}
	done()

	if db != nil {
		run := data.NewRun(c.Name, res, c.Scoring)
		var pairs []*similarity.Pair
		if sim != nil {
			pairs = sim.Pairs
		}
		if err := data.SaveRun(db, run, res.Table, pairs); err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		report.RunID = run.ID
	}

	report.Duration = time.Since(start).Round(time.Millisecond).String()
	return report, nil
}

type output struct {
	kind  string
	write func(io.Writer) error
}

// writeOutput creates path and writes it with write.
func writeOutput(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	slog.Debug("output written", "path", path)
	return nil
}
