package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/lookup"
	"github.com/mchmarny/gof/pkg/mapping"
	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/mchmarny/gof/pkg/stats"
	urfave "github.com/urfave/cli/v3"
)

const (
	itemsFlag        = "items"
	categoriesFlag   = "categories"
	itemInfoFlag     = "item-info"
	categoryInfoFlag = "category-info"
	curatedFlag      = "curated"
	citationsFlag    = "citations"
	alphaFlag        = "alpha"
	minOverlapFlag   = "min-overlap"
	outFlag          = "out"
	pvaluesFlag      = "pvalues"
	associationsFlag = "associations"
	topOutFlag       = "top-out"
	topFlag          = "top"
)

func workersFlagDef() urfave.Flag {
	return &urfave.IntFlag{
		Name:  workersFlag,
		Usage: "Number of scoring workers",
		Value: runtime.NumCPU(),
	}
}

func newAssociateCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "associate",
		Usage: "Score item-category associations from mapping files",
		Flags: []urfave.Flag{
			&urfave.StringFlag{Name: itemsFlag, Usage: "Item mapping TSV", Required: true},
			&urfave.StringFlag{Name: categoriesFlag, Usage: "Category mapping TSV", Required: true},
			&urfave.StringFlag{Name: itemInfoFlag, Usage: "Item names TSV (optional)"},
			&urfave.StringFlag{Name: categoryInfoFlag, Usage: "Category ontology CSV (optional)"},
			&urfave.StringFlag{Name: curatedFlag, Usage: "Curated gene sets GMT (optional)"},
			&urfave.StringFlag{Name: citationsFlag, Usage: "Citation evidence TSV, gzip allowed (optional)"},
			&urfave.FloatFlag{Name: alphaFlag, Usage: "Adjusted p-value cutoff", Value: enrich.AlphaDefault},
			&urfave.IntFlag{Name: minOverlapFlag, Usage: "Minimum shared contexts without corroboration", Value: enrich.MinOverlapDefault},
			workersFlagDef(),
			&urfave.StringFlag{Name: outFlag, Usage: "Association table CSV to write", Required: true},
			&urfave.StringFlag{Name: pvaluesFlag, Usage: "P-value dump CSV to write (optional)"},
		},
		Action: cmdAssociate,
	}
}

func cmdAssociate(ctx context.Context, cmd *urfave.Command) error {
	items, err := mapping.Load(cmd.String(itemsFlag))
	if err != nil {
		return err
	}
	categories, err := mapping.Load(cmd.String(categoriesFlag))
	if err != nil {
		return err
	}
	catalog, err := lookup.Load(lookup.Paths{
		ItemInfo:     cmd.String(itemInfoFlag),
		CategoryInfo: cmd.String(categoryInfoFlag),
		CuratedSets:  cmd.String(curatedFlag),
		Citations:    cmd.String(citationsFlag),
	})
	if err != nil {
		return err
	}

	opts := enrich.Options{
		Alpha:      cmd.Float(alphaFlag),
		MinOverlap: cmd.Int(minOverlapFlag),
		Workers:    cmd.Int(workersFlag),
		CacheSize:  stats.CacheSizeDefault,
	}
	res, err := enrich.Score(ctx, items, categories, catalog, opts)
	if err != nil {
		return err
	}

	if err := writeOutput(cmd.String(outFlag), func(w io.Writer) error {
		return enrich.WriteTable(w, res.Table)
	}); err != nil {
		return err
	}
	if p := cmd.String(pvaluesFlag); p != "" {
		if err := writeOutput(p, func(w io.Writer) error {
			return enrich.WritePValues(w, res.Scored)
		}); err != nil {
			return err
		}
	}

	return encode(cmd, res.Summary)
}

func newSimilarityCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "similarity",
		Usage: "Score item-item similarity from an association table",
		Flags: []urfave.Flag{
			&urfave.StringFlag{Name: associationsFlag, Usage: "Association table CSV", Required: true},
			&urfave.StringFlag{Name: outFlag, Usage: "Similarity table CSV to write", Required: true},
			&urfave.StringFlag{Name: topOutFlag, Usage: "Top fraction similarity CSV to write (optional)"},
			&urfave.FloatFlag{Name: topFlag, Usage: "Fraction of pairs in the top table", Value: similarity.TopFractionDefault},
			workersFlagDef(),
		},
		Action: cmdSimilarity,
	}
}

// similarityReport is the output of the similarity command.
type similarityReport struct {
	Summary *similarity.Summary   `json:"summary" yaml:"summary"`
	Top     *similarity.Selection `json:"top" yaml:"top"`
}

func cmdSimilarity(ctx context.Context, cmd *urfave.Command) error {
	table, err := enrich.LoadTable(cmd.String(associationsFlag))
	if err != nil {
		return err
	}

	res, err := similarity.Compute(ctx, similarity.ProfileFromTable(table), cmd.Int(workersFlag))
	if err != nil {
		return err
	}
	top, err := res.Top(cmd.Float(topFlag))
	if err != nil {
		return fmt.Errorf("invalid --%s: %w", topFlag, err)
	}

	if err := writeOutput(cmd.String(outFlag), func(w io.Writer) error {
		return similarity.WritePairs(w, res.Pairs)
	}); err != nil {
		return err
	}
	if p := cmd.String(topOutFlag); p != "" {
		if err := writeOutput(p, func(w io.Writer) error {
			return similarity.WritePairs(w, top.Pairs)
		}); err != nil {
			return err
		}
	}

	return encode(cmd, &similarityReport{Summary: res.Summary, Top: top})
}
