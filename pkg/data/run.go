package data

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/pkg/errors"
)

const (
	insertRunSQL = `INSERT INTO run (
			id, name, created_at, items, categories, contexts, scored,
			associations, pairs, alpha, min_overlap
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertAssociationSQL = `INSERT INTO association (
			run_id, seq, letter, item_id, item_name, category_id, category_namespace,
			category_name, a, b, c, d, p_value, adjusted_p_value, enrichment_score,
			category_level, category_children, curated, citations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertSimilaritySQL = `INSERT INTO similarity (
			run_id, seq, item1_id, item1_name, item2_id, item2_name,
			score, score_minmax, score_standard
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectRunsSQL = `SELECT
			id, name, created_at, items, categories, contexts, scored,
			associations, pairs, alpha, min_overlap
		FROM run
		WHERE name = COALESCE(?, name)
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	selectRunSQL = `SELECT
			id, name, created_at, items, categories, contexts, scored,
			associations, pairs, alpha, min_overlap
		FROM run
		WHERE id = ?
	`

	deleteRunSQL = `DELETE FROM run WHERE id = ?`
)

// Run is one persisted scoring run.
type Run struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	CreatedAt    time.Time `json:"created_at" yaml:"createdAt"`
	Items        int       `json:"items" yaml:"items"`
	Categories   int       `json:"categories" yaml:"categories"`
	Contexts     int       `json:"contexts" yaml:"contexts"`
	Scored       int       `json:"scored" yaml:"scored"`
	Associations int       `json:"associations" yaml:"associations"`
	Pairs        int       `json:"pairs" yaml:"pairs"`
	Alpha        float64   `json:"alpha" yaml:"alpha"`
	MinOverlap   int       `json:"min_overlap" yaml:"minOverlap"`
}

// NewRun describes a finished association run. The similarity pair count is
// filled in by SaveRun.
func NewRun(name string, res *enrich.Result, opts enrich.Options) *Run {
	r := &Run{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Alpha:      opts.Alpha,
		MinOverlap: opts.MinOverlap,
	}
	if res != nil && res.Summary != nil {
		r.Items = res.Summary.Items
		r.Categories = res.Summary.Categories
		r.Contexts = res.Summary.Contexts
		r.Scored = res.Summary.Scored
		r.Associations = res.Summary.Retained
	}
	return r
}

// SaveRun persists the run with its association table and similarity pairs
// in a single transaction. Table and pair order is kept in the seq column.
func SaveRun(db *sql.DB, run *Run, table *enrich.Table, pairs []*similarity.Pair) error {
	if db == nil {
		return errDBNotInitialized
	}
	if run == nil || run.ID == "" || run.Name == "" {
		return errors.New("run with id and name required")
	}

	run.Associations = table.Len()
	run.Pairs = len(pairs)

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin run transaction")
	}

	if _, err := tx.Exec(insertRunSQL,
		run.ID, run.Name, run.CreatedAt.UTC().Format(timeFormat),
		run.Items, run.Categories, run.Contexts, run.Scored,
		run.Associations, run.Pairs, run.Alpha, run.MinOverlap,
	); err != nil {
		rollbackTransaction(tx)
		return errors.Wrapf(err, "failed to insert run %s", run.ID)
	}

	if err := saveAssociations(tx, run.ID, table); err != nil {
		rollbackTransaction(tx)
		return err
	}
	if err := savePairs(tx, run.ID, pairs); err != nil {
		rollbackTransaction(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit run transaction")
	}

	slog.Info("run saved",
		"id", run.ID,
		"name", run.Name,
		"associations", run.Associations,
		"pairs", run.Pairs,
	)
	return nil
}

func saveAssociations(tx *sql.Tx, runID string, table *enrich.Table) error {
	if table.Len() == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertAssociationSQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare association insert")
	}
	defer stmt.Close()

	for i, a := range table.Records {
		if _, err := stmt.Exec(runID, i,
			a.Letter, a.ItemID, a.ItemName, a.CategoryID, a.CategoryNamespace, a.CategoryName,
			a.A, a.B, a.C, a.D, a.PValue, a.AdjustedPValue, a.EnrichmentScore,
			a.CategoryLevel, a.CategoryChildren, a.Curated, a.Citations,
		); err != nil {
			return errors.Wrapf(err, "failed to insert association %s/%s", a.ItemID, a.CategoryID)
		}
	}
	return nil
}

func savePairs(tx *sql.Tx, runID string, pairs []*similarity.Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertSimilaritySQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare similarity insert")
	}
	defer stmt.Close()

	logEvery := max(len(pairs)/10, 1)
	for i, p := range pairs {
		if _, err := stmt.Exec(runID, i,
			p.Item1ID, p.Item1Name, p.Item2ID, p.Item2Name,
			p.Score, p.MinMax, p.Standard,
		); err != nil {
			return errors.Wrapf(err, "failed to insert similarity %s/%s", p.Item1ID, p.Item2ID)
		}
		if (i+1)%logEvery == 0 {
			slog.Debug("similarity save progress", "saved", i+1, "total", len(pairs))
		}
	}
	return nil
}

// GetRuns returns up to limit runs, newest first. An empty name returns runs
// of every name.
func GetRuns(db *sql.DB, name string, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.Query(selectRunsSQL, optional(name), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate runs")
	}
	return list, nil
}

// GetRun returns the run with id, or nil when there is none.
func GetRun(db *sql.DB, id string) (*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	r, err := scanRun(db.QueryRow(selectRunSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ResolveRunID returns id when set, otherwise the id of the newest run named
// name (or of any name when name is empty).
func ResolveRunID(db *sql.DB, id, name string) (string, error) {
	if id != "" {
		return id, nil
	}
	runs, err := GetRuns(db, name, 1)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs found for name %q", name)
	}
	return runs[0].ID, nil
}

// DeleteRun removes the run and its tables.
func DeleteRun(db *sql.DB, id string) error {
	if db == nil {
		return errDBNotInitialized
	}
	if _, err := db.Exec(deleteRunSQL, id); err != nil {
		return errors.Wrapf(err, "failed to delete run %s", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	var created string
	if err := row.Scan(&r.ID, &r.Name, &created, &r.Items, &r.Categories, &r.Contexts,
		&r.Scored, &r.Associations, &r.Pairs, &r.Alpha, &r.MinOverlap); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan run")
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid run time %q", created)
	}
	r.CreatedAt = t
	return r, nil
}

// optional maps an empty filter to NULL so COALESCE matches every row.
func optional(v string) any {
	if v == "" {
		return nil
	}
	return v
}
