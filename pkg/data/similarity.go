package data

import (
	"database/sql"

	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/pkg/errors"
)

const (
	similarityColumns = `item1_id, item1_name, item2_id, item2_name, score, score_minmax, score_standard`

	selectPairsSQL = `SELECT ` + similarityColumns + `
		FROM similarity
		WHERE run_id = ?
		ORDER BY seq
		LIMIT ?
	`

	// lowest raw score first, same as similarity.Result.TopForItem
	selectItemPairsSQL = `SELECT ` + similarityColumns + `
		FROM similarity
		WHERE run_id = ?
		AND (item1_id = ? OR item2_id = ? OR item1_name = ? OR item2_name = ?)
		ORDER BY score ASC, seq
		LIMIT ?
	`
)

// GetPairs returns up to limit similarity pairs of a run in stored order
// (descending raw score). limit <= 0 returns all.
func GetPairs(db *sql.DB, runID string, limit int) ([]*similarity.Pair, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return queryPairs(db, selectPairsSQL, runID, sqlLimit(limit))
}

// GetItemPairs returns up to limit pairs containing the item, matched by id
// or name, lowest raw score first. limit <= 0 returns all.
func GetItemPairs(db *sql.DB, runID, item string, limit int) ([]*similarity.Pair, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	return queryPairs(db, selectItemPairsSQL, runID, item, item, item, item, sqlLimit(limit))
}

func queryPairs(db *sql.DB, query string, args ...any) ([]*similarity.Pair, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query similarity")
	}
	defer rows.Close()

	list := make([]*similarity.Pair, 0)
	for rows.Next() {
		p := &similarity.Pair{}
		var name1, name2 sql.NullString
		if err := rows.Scan(&p.Item1ID, &name1, &p.Item2ID, &name2,
			&p.Score, &p.MinMax, &p.Standard); err != nil {
			return nil, errors.Wrap(err, "failed to scan similarity")
		}
		p.Item1Name = name1.String
		p.Item2Name = name2.String
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate similarity")
	}
	return list, nil
}
