package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mchmarny/gof/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080

	portFlag = "port"

	latestRun = "latest"
)

func newServerCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP query server",
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  portFlag,
				Usage: "Port on which the server will listen",
				Value: serverPortDefault,
			},
		},
		Action: cmdStartServer,
	}
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	address := fmt.Sprintf("127.0.0.1:%d", cmd.Int(portFlag))

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg.DB),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("error starting server", "error", err)
			stop()
		}
	}()

	slog.Info("server started", "address", "http://"+address)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func makeRouter(db *sql.DB) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.GET("/state", stateHandler(db))
	api.GET("/runs", runsHandler(db))

	run := api.Group("/runs/:run")
	run.GET("", runHandler(db))
	run.GET("/items/:item/associations", itemAssociationsHandler(db))
	run.GET("/items/:item/similar", itemPairsHandler(db))
	run.GET("/categories/:category/associations", categoryAssociationsHandler(db))

	return r
}

func sendError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

// limitParam reads the limit query parameter, defaulting to queryLimitDefault.
func limitParam(c *gin.Context) (int, error) {
	v := c.DefaultQuery("limit", strconv.Itoa(queryLimitDefault))
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

// runParam resolves the run path parameter; "latest" picks the newest run,
// optionally of the case in the name query parameter.
func runParam(c *gin.Context, db *sql.DB) (string, bool) {
	id := c.Param("run")
	if id != latestRun {
		return id, true
	}
	id, err := data.ResolveRunID(db, "", c.Query("name"))
	if err != nil {
		sendError(c, http.StatusNotFound, err)
		return "", false
	}
	return id, true
}

func stateHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := data.GetDataState(db)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func runsHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := limitParam(c)
		if err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
		runs, err := data.GetRuns(db, c.Query("name"), limit)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func runHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := runParam(c, db)
		if !ok {
			return
		}
		run, err := data.GetRun(db, id)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		if run == nil {
			sendError(c, http.StatusNotFound, fmt.Errorf("run %s not found", id))
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// listHandler serves a run-scoped list keyed by the named path parameter.
func listHandler[T any](db *sql.DB, param string, query func(*sql.DB, string, string, int) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := limitParam(c)
		if err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
		id, ok := runParam(c, db)
		if !ok {
			return
		}
		list, err := query(db, id, c.Param(param), limit)
		if err != nil {
			sendError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func itemAssociationsHandler(db *sql.DB) gin.HandlerFunc {
	return listHandler(db, "item", data.GetItemAssociations)
}

func categoryAssociationsHandler(db *sql.DB) gin.HandlerFunc {
	return listHandler(db, "category", data.GetCategoryAssociations)
}

func itemPairsHandler(db *sql.DB) gin.HandlerFunc {
	return listHandler(db, "item", data.GetItemPairs)
}
