package data

import (
	"database/sql"

	"github.com/pkg/errors"
)

var stateQueries = map[string]string{
	"run":         "SELECT COUNT(*) FROM run",
	"association": "SELECT COUNT(*) FROM association",
	"similarity":  "SELECT COUNT(*) FROM similarity",
	"item":        "SELECT COUNT(DISTINCT item_id) FROM association",
	"category":    "SELECT COUNT(DISTINCT category_id) FROM association",
}

// GetDataState returns the current state of the database.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, v := range stateQueries {
		stmt, err := db.Prepare(v)
		if err != nil {
			return nil, errors.Wrapf(err, "error preparing %s statement", k)
		}

		count, err := getCount(stmt)
		stmt.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "error getting %s count", k)
		}
		state[k] = count
	}

	return state, nil
}

func getCount(stmt *sql.Stmt) (int64, error) {
	row := stmt.QueryRow()

	var count int64
	err := row.Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to scan row")
	}

	return count, nil
}
