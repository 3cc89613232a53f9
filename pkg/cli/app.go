package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/gof/pkg/config"
	"github.com/mchmarny/gof/pkg/data"
	"github.com/mchmarny/gof/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "gof"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

const (
	debugFlag      = "debug"
	logLevelFlag   = "log-level"
	dbFilePathFlag = "db"
	formatFlag     = "format"
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath string
	Debug  bool
	Format string
	DB     *sql.DB
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

// newApp builds the command tree. It is built per run since urfave flags
// keep their parsed state.
func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Gene-category association and gene-gene similarity scoring",
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  debugFlag,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&urfave.StringFlag{
				Name:    logLevelFlag,
				Usage:   "Log level [debug, info, warn, error]",
				Value:   "info",
				Sources: urfave.EnvVars("GOF_LOG_LEVEL"),
			},
			&urfave.StringFlag{
				Name:    dbFilePathFlag,
				Usage:   "Path to the Sqlite run store (optional, defaults to $HOME/.gof/data.db)",
				Sources: urfave.EnvVars("GOF_DB"),
			},
			&urfave.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*urfave.Command{
			newInitCmd(),
			newRunCmd(),
			newAssociateCmd(),
			newSimilarityCmd(),
			newQueryCmd(),
			newRunsCmd(),
			newStateCmd(),
			newServerCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			level := cmd.String(logLevelFlag)
			if cmd.Bool(debugFlag) {
				level = "debug"
			}
			logging.SetDefaultCLILogger(level)

			format := formatJSON
			if f := cmd.String(formatFlag); f == formatYAML || f == "yml" {
				format = formatYAML
			}

			dbPath := cmd.String(dbFilePathFlag)
			if dbPath == "" {
				dir, _, err := config.GetOrCreateHomeDir(appName)
				if err != nil {
					return ctx, fmt.Errorf("resolving home dir: %w", err)
				}
				dbPath = filepath.Join(dir, data.DataFileName)
			}

			if err := data.Init(dbPath); err != nil {
				return ctx, fmt.Errorf("initializing database: %w", err)
			}

			db, err := data.GetDB(dbPath)
			if err != nil {
				return ctx, fmt.Errorf("opening database: %w", err)
			}

			cmd.Root().Metadata[appConfigKey] = &appConfig{
				DBPath: dbPath,
				Debug:  level == "debug",
				Format: format,
				DB:     db,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

// encode writes v to the command output in the selected format.
func encode(cmd *urfave.Command, v any) error {
	format := formatJSON
	if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok {
		format = cfg.Format
	}
	return encodeTo(cmd.Root().Writer, format, v)
}

func encodeTo(w io.Writer, format string, v any) error {
	if format == formatYAML {
		return yaml.NewEncoder(w).Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
