package data

import (
	"testing"
	"time"

	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRun(name string) (*Run, *enrich.Table, []*similarity.Pair) {
	res := &enrich.Result{
		Summary: &enrich.Summary{Items: 3, Categories: 2, Contexts: 40, Scored: 6, Retained: 4},
	}
	run := NewRun(name, res, enrich.DefaultOptions())

	table := enrich.NewTable([]*enrich.Association{
		{Letter: "A", ItemID: "1", ItemName: "alpha", CategoryID: "GO:1", CategoryName: "growth", A: 9, B: 1, C: 2, D: 28, PValue: 1e-9, AdjustedPValue: 2e-9, EnrichmentScore: 20.03, Curated: true},
		{Letter: "A", ItemID: "1", ItemName: "alpha", CategoryID: "GO:2", CategoryName: "death", A: 5, B: 5, C: 1, D: 29, PValue: 0.001, AdjustedPValue: 0.002, EnrichmentScore: 6.2, Citations: 3},
		{Letter: "B", ItemID: "2", ItemName: "beta", CategoryID: "GO:1", CategoryName: "growth", A: 6, B: 0, C: 5, D: 29, PValue: 0.01, AdjustedPValue: 0.01, EnrichmentScore: 4.6, CategoryLevel: 3},
		{Letter: "G", ItemID: "3", CategoryID: "GO:1", CategoryName: "growth", A: 7, B: 2, C: 4, D: 27, PValue: 0.02, AdjustedPValue: 0.02, EnrichmentScore: 3.9},
	})

	pairs := []*similarity.Pair{
		{Item1ID: "1", Item1Name: "alpha", Item2ID: "2", Item2Name: "beta", Score: 9.5, MinMax: 1, Standard: 1},
		{Item1ID: "1", Item1Name: "alpha", Item2ID: "3", Item2Name: "3", Score: 2.5, MinMax: 0, Standard: -1},
	}
	return run, table, pairs
}

func TestSaveRun(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))

	got, err := GetRun(db, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "case", got.Name)
	assert.Equal(t, 4, got.Associations)
	assert.Equal(t, 2, got.Pairs)
	assert.Equal(t, 40, got.Contexts)
	assert.Equal(t, enrich.AlphaDefault, got.Alpha)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)

	stored, err := GetAssociationTable(db, run.ID)
	require.NoError(t, err)
	require.Equal(t, table.Len(), stored.Len())
	for i := range table.Records {
		assert.Equal(t, *table.Records[i], *stored.Records[i])
	}

	storedPairs, err := GetPairs(db, run.ID, 0)
	require.NoError(t, err)
	require.Len(t, storedPairs, 2)
	assert.Equal(t, *pairs[0], *storedPairs[0])

	one, err := GetPairs(db, run.ID, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSaveRun_Validation(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")

	assert.ErrorIs(t, SaveRun(nil, run, table, pairs), errDBNotInitialized)
	assert.Error(t, SaveRun(db, nil, table, pairs))
	assert.Error(t, SaveRun(db, &Run{ID: "x"}, table, pairs))
}

func TestSaveRun_DuplicateRollsBack(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))
	assert.Error(t, SaveRun(db, run, table, pairs))

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state["run"])
	assert.Equal(t, int64(4), state["association"])
}

func TestSaveRun_EmptyTables(t *testing.T) {
	db := setupTestDB(t)
	run, _, _ := testRun("empty")
	require.NoError(t, SaveRun(db, run, nil, nil))

	stored, err := GetAssociationTable(db, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Len())
}

func TestGetRuns(t *testing.T) {
	db := setupTestDB(t)

	older, table, pairs := testRun("case")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, SaveRun(db, older, table, pairs))

	newer, _, _ := testRun("case")
	require.NoError(t, SaveRun(db, newer, table, pairs))

	other, _, _ := testRun("other")
	other.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, SaveRun(db, other, nil, nil))

	runs, err := GetRuns(db, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = GetRuns(db, "case", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)

	id, err := ResolveRunID(db, "", "case")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, id)

	id, err = ResolveRunID(db, "explicit", "case")
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	_, err = ResolveRunID(db, "", "missing")
	assert.Error(t, err)
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	r, err := GetRun(db, "nope")
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestDeleteRun_Cascades(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))
	require.NoError(t, DeleteRun(db, run.ID))

	state, err := GetDataState(db)
	require.NoError(t, err)
	assert.Zero(t, state["run"])
	assert.Zero(t, state["association"])
	assert.Zero(t, state["similarity"])
}

func TestGetItemAssociations(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))

	list, err := GetItemAssociations(db, run.ID, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "GO:2", list[0].CategoryID)
	assert.Equal(t, "GO:1", list[1].CategoryID)

	want := table.TopForItem("alpha", 0)
	for i := range want {
		assert.Equal(t, *want[i], *list[i])
	}

	list, err = GetItemAssociations(db, run.ID, "1", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetCategoryAssociations(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))

	list, err := GetCategoryAssociations(db, run.ID, "growth", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].ItemID)
	assert.Equal(t, "2", list[1].ItemID)

	list, err = GetCategoryAssociations(db, run.ID, "GO:9", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetItemPairs(t *testing.T) {
	db := setupTestDB(t)
	run, table, pairs := testRun("case")
	require.NoError(t, SaveRun(db, run, table, pairs))

	list, err := GetItemPairs(db, run.ID, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "3", list[0].Item2ID)
	assert.Equal(t, "2", list[1].Item2ID)

	list, err = GetItemPairs(db, run.ID, "beta", 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].Item1ID)
}

func TestQueries_NilDB(t *testing.T) {
	_, err := GetRuns(nil, "", 1)
	assert.Error(t, err)
	_, err = GetRun(nil, "x")
	assert.Error(t, err)
	_, err = GetAssociationTable(nil, "x")
	assert.Error(t, err)
	_, err = GetItemAssociations(nil, "x", "y", 1)
	assert.Error(t, err)
	_, err = GetCategoryAssociations(nil, "x", "y", 1)
	assert.Error(t, err)
	_, err = GetPairs(nil, "x", 1)
	assert.Error(t, err)
	_, err = GetItemPairs(nil, "x", "y", 1)
	assert.Error(t, err)
	assert.Error(t, DeleteRun(nil, "x"))
}
