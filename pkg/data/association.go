package data

import (
	"database/sql"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/pkg/errors"
)

const (
	associationColumns = `letter, item_id, item_name, category_id, category_namespace,
		category_name, a, b, c, d, p_value, adjusted_p_value, enrichment_score,
		category_level, category_children, curated, citations`

	selectAssociationsSQL = `SELECT ` + associationColumns + `
		FROM association
		WHERE run_id = ?
		ORDER BY seq
	`

	// least significant first, same as enrich.Table.TopForItem
	selectItemAssociationsSQL = `SELECT ` + associationColumns + `
		FROM association
		WHERE run_id = ?
		AND (item_id = ? OR item_name = ?)
		ORDER BY adjusted_p_value DESC, seq
		LIMIT ?
	`

	selectCategoryAssociationsSQL = `SELECT ` + associationColumns + `
		FROM association
		WHERE run_id = ?
		AND (category_id = ? OR category_name = ?)
		ORDER BY adjusted_p_value DESC, seq
		LIMIT ?
	`
)

// GetAssociationTable loads the stored association table of a run in table
// order.
func GetAssociationTable(db *sql.DB, runID string) (*enrich.Table, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	list, err := queryAssociations(db, selectAssociationsSQL, runID)
	if err != nil {
		return nil, err
	}
	return &enrich.Table{Records: list}, nil
}

// GetItemAssociations returns up to limit associations of the item matched
// by id or name, least significant first. limit <= 0 returns all.
func GetItemAssociations(db *sql.DB, runID, item string, limit int) ([]*enrich.Association, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return queryAssociations(db, selectItemAssociationsSQL, runID, item, item, sqlLimit(limit))
}

// GetCategoryAssociations returns up to limit associations of the category
// matched by id or name, least significant first. limit <= 0 returns all.
func GetCategoryAssociations(db *sql.DB, runID, category string, limit int) ([]*enrich.Association, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return queryAssociations(db, selectCategoryAssociationsSQL, runID, category, category, sqlLimit(limit))
}

func queryAssociations(db *sql.DB, query string, args ...any) ([]*enrich.Association, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query associations")
	}
	defer rows.Close()

	list := make([]*enrich.Association, 0)
	for rows.Next() {
		a := &enrich.Association{}
		var letter, itemName, namespace, categoryName sql.NullString
		if err := rows.Scan(&letter, &a.ItemID, &itemName, &a.CategoryID, &namespace,
			&categoryName, &a.A, &a.B, &a.C, &a.D, &a.PValue, &a.AdjustedPValue,
			&a.EnrichmentScore, &a.CategoryLevel, &a.CategoryChildren, &a.Curated,
			&a.Citations); err != nil {
			return nil, errors.Wrap(err, "failed to scan association")
		}
		a.Letter = letter.String
		a.ItemName = itemName.String
		a.CategoryNamespace = namespace.String
		a.CategoryName = categoryName.String
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate associations")
	}
	return list, nil
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
