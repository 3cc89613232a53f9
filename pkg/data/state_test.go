package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataState_Empty(t *testing.T) {
	db := setupTestDB(t)
	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Len(t, state, len(stateQueries))
	for k, v := range state {
		assert.Zero(t, v, k)
	}
}

func TestGetDataState_AfterRun(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state["run"])
	assert.Equal(t, int64(4), state["association"])
	assert.Equal(t, int64(2), state["similarity"])
	assert.Equal(t, int64(3), state["item"])
	assert.Equal(t, int64(2), state["category"])
}

func TestGetDataState_NilDB(t *testing.T) {
	_, err := GetDataState(nil)
	assert.Error(t, err)
}
