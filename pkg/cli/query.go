package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/gof/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const (
	runFlag   = "run"
	limitFlag = "limit"

	queryLimitDefault = 10
)

func queryFlags() []urfave.Flag {
	return []urfave.Flag{
		&urfave.StringFlag{Name: runFlag, Usage: "Run id (optional, defaults to the latest run)"},
		&urfave.StringFlag{Name: nameFlag, Usage: "Case name used to pick the latest run (optional)"},
		&urfave.IntFlag{Name: limitFlag, Usage: "Maximum number of rows, 0 for all", Value: queryLimitDefault},
	}
}

func newQueryCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "query",
		Usage: "Query a saved run",
		Commands: []*urfave.Command{
			{
				Name:      "item",
				Usage:     "Associations of an item, least significant first",
				ArgsUsage: "<item id or name>",
				Flags:     queryFlags(),
				Action:    cmdQueryItem,
			},
			{
				Name:      "category",
				Usage:     "Associations of a category, least significant first",
				ArgsUsage: "<category id or name>",
				Flags:     queryFlags(),
				Action:    cmdQueryCategory,
			},
			{
				Name:      "similar",
				Usage:     "Similarity pairs of an item, lowest score first",
				ArgsUsage: "<item id or name>",
				Flags:     queryFlags(),
				Action:    cmdQuerySimilar,
			},
		},
	}
}

// queryArgs resolves the run and the lookup key of a query command.
func queryArgs(cmd *urfave.Command) (runID, key string, err error) {
	key = cmd.Args().First()
	if key == "" {
		return "", "", errors.New("query key required")
	}
	runID, err = data.ResolveRunID(getConfig(cmd).DB, cmd.String(runFlag), cmd.String(nameFlag))
	if err != nil {
		return "", "", err
	}
	return runID, key, nil
}

func cmdQueryItem(_ context.Context, cmd *urfave.Command) error {
	runID, key, err := queryArgs(cmd)
	if err != nil {
		return err
	}
	list, err := data.GetItemAssociations(getConfig(cmd).DB, runID, key, cmd.Int(limitFlag))
	if err != nil {
		return fmt.Errorf("querying item %s: %w", key, err)
	}
	return encode(cmd, list)
}

func cmdQueryCategory(_ context.Context, cmd *urfave.Command) error {
	runID, key, err := queryArgs(cmd)
	if err != nil {
		return err
	}
	list, err := data.GetCategoryAssociations(getConfig(cmd).DB, runID, key, cmd.Int(limitFlag))
	if err != nil {
		return fmt.Errorf("querying category %s: %w", key, err)
	}
	return encode(cmd, list)
}

func cmdQuerySimilar(_ context.Context, cmd *urfave.Command) error {
	runID, key, err := queryArgs(cmd)
	if err != nil {
		return err
	}
	list, err := data.GetItemPairs(getConfig(cmd).DB, runID, key, cmd.Int(limitFlag))
	if err != nil {
		return fmt.Errorf("querying similarity of %s: %w", key, err)
	}
	return encode(cmd, list)
}

func newRunsCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "runs",
		Usage: "List saved runs, newest first",
		Flags: []urfave.Flag{
			&urfave.StringFlag{Name: nameFlag, Usage: "Case name filter (optional)"},
			&urfave.IntFlag{Name: limitFlag, Usage: "Maximum number of runs, 0 for all", Value: queryLimitDefault},
		},
		Action: func(_ context.Context, cmd *urfave.Command) error {
			runs, err := data.GetRuns(getConfig(cmd).DB, cmd.String(nameFlag), cmd.Int(limitFlag))
			if err != nil {
				return err
			}
			return encode(cmd, runs)
		},
	}
}

func newStateCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "state",
		Usage: "Show the run store row counts",
		Action: func(_ context.Context, cmd *urfave.Command) error {
			state, err := data.GetDataState(getConfig(cmd).DB)
			if err != nil {
				return err
			}
			return encode(cmd, state)
		},
	}
}
