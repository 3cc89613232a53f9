package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/gof/pkg/config"
	"github.com/mchmarny/gof/pkg/enrich"
	"github.com/mchmarny/gof/pkg/logging"
	"github.com/mchmarny/gof/pkg/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.SetDefaultCLILogger("error")
	os.Exit(m.Run())
}

func contexts(from, to int, extra ...string) string {
	list := make([]string, 0)
	for i := from; i <= to; i++ {
		list = append(list, fmt.Sprintf("p%02d", i))
	}
	return strings.Join(append(list, extra...), ";")
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// writeCase writes a small case with three significant associations and
// returns the config path.
func writeCase(t *testing.T, dir string) string {
	t.Helper()
	writeTestFile(t, dir, "items.tsv", "id\tname\tContexts\n"+
		"GA\tGA\t"+contexts(0, 9)+"\n"+
		"GB\tGB\t"+contexts(0, 7, "p20")+"\n"+
		"GC\tGC\t"+contexts(15, 19)+"\n")
	writeTestFile(t, dir, "categories.tsv", "id\tname\tContexts\n"+
		"CA\tcell cycle\t"+contexts(0, 9)+"\n"+
		"CB\tapoptosis\t"+contexts(15, 19, "p29")+"\n"+
		"CC\tgrowth\t"+contexts(20, 24)+"\n")
	writeTestFile(t, dir, "names.tsv", "id\tname\nGA\talpha\nGB\tbeta\n")

	c := config.Default("case")
	c.Items = "items.tsv"
	c.Categories = "categories.tsv"
	c.Lookup.ItemInfo = "names.tsv"
	c.OutputDir = "out"
	c.Scoring.Workers = 2
	c.Similarity.TopFraction = 1
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, config.Save(path, c))
	return path
}

func runApp(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{appName, "--db", db}, args...))
	return buf.String(), err
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data.db")

	out, err := runApp(t, db, "init", "--name", "case", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, config.FileName)

	c, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "case", c.Name)

	_, err = runApp(t, db, "init", "--name", "case", "--dir", dir)
	assert.Error(t, err)

	_, err = runApp(t, db, "init", "--name", "case", "--dir", dir, "--force")
	assert.NoError(t, err)

	_, err = runApp(t, db, "init", "--name", "bad@name", "--dir", t.TempDir())
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data.db")
	cfg := writeCase(t, dir)

	out, err := runApp(t, db, "run", "--config", cfg)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Associations.Retained)
	assert.Equal(t, 1, report.Similarity.Pairs)
	require.NotNil(t, report.Top)
	assert.Equal(t, 1, report.Top.Edges)
	assert.Equal(t, 2, report.Top.Nodes)
	require.Len(t, report.Outputs, 4)
	for _, p := range report.Outputs {
		assert.FileExists(t, p)
		assert.Contains(t, filepath.Base(p), "case@")
	}

	table, err := enrich.LoadTable(filepath.Join(dir, "out", "case@associations.csv"))
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, "alpha", table.Records[0].ItemName)

	pairs, err := similarity.LoadPairs(filepath.Join(dir, "out", "case@similarity.csv"))
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "GA", pairs[0].Item1ID)
	assert.Equal(t, "GB", pairs[0].Item2ID)

	out, err = runApp(t, db, "query", "item", "--name", "case", "alpha")
	require.NoError(t, err)
	var assocs []*enrich.Association
	require.NoError(t, json.Unmarshal([]byte(out), &assocs))
	require.Len(t, assocs, 1)
	assert.Equal(t, "CA", assocs[0].CategoryID)

	out, err = runApp(t, db, "query", "category", "--run", report.RunID, "cell cycle")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &assocs))
	assert.Len(t, assocs, 2)

	out, err = runApp(t, db, "query", "similar", "beta")
	require.NoError(t, err)
	var similar []*similarity.Pair
	require.NoError(t, json.Unmarshal([]byte(out), &similar))
	require.Len(t, similar, 1)

	_, err = runApp(t, db, "query", "item")
	assert.Error(t, err)

	out, err = runApp(t, db, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, report.RunID)

	out, err = runApp(t, db, "--format", "yaml", "state")
	require.NoError(t, err)
	assert.Contains(t, out, "association: 3")
}

func TestRunCommand_NoSave(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data.db")
	cfg := writeCase(t, dir)

	out, err := runApp(t, db, "run", "--config", cfg, "--no-save", "--output-dir", filepath.Join(dir, "alt"))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.RunID)
	assert.FileExists(t, filepath.Join(dir, "alt", "case@pvalues.csv"))

	_, err = runApp(t, db, "query", "item", "GA")
	assert.Error(t, err)
}

func TestRunCommand_MalformedInputWritesNothing(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data.db")
	cfg := writeCase(t, dir)
	writeTestFile(t, dir, "categories.tsv", "id\tname\tContexts\nCA\tonly two fields\n")

	_, err := runApp(t, db, "run", "--config", cfg)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAssociateAndSimilarityCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "data.db")
	writeCase(t, dir)

	assocPath := filepath.Join(dir, "assoc.csv")
	out, err := runApp(t, db, "associate",
		"--items", filepath.Join(dir, "items.tsv"),
		"--categories", filepath.Join(dir, "categories.tsv"),
		"--item-info", filepath.Join(dir, "names.tsv"),
		"--workers", "3",
		"--out", assocPath,
		"--pvalues", filepath.Join(dir, "p.csv"),
	)
	require.NoError(t, err)

	var summary enrich.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.Retained)
	assert.Equal(t, 21, summary.Contexts)
	assert.FileExists(t, filepath.Join(dir, "p.csv"))

	simPath := filepath.Join(dir, "sim.csv")
	topPath := filepath.Join(dir, "top.csv")
	out, err = runApp(t, db, "similarity",
		"--associations", assocPath,
		"--out", simPath,
		"--top-out", topPath,
		"--top", "1",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"pairs": 1`)

	top, err := similarity.LoadPairs(topPath)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = runApp(t, db, "similarity", "--associations", assocPath, "--out", simPath, "--top", "0")
	assert.Error(t, err)

	_, err = runApp(t, db, "associate", "--items", filepath.Join(dir, "missing.tsv"),
		"--categories", filepath.Join(dir, "categories.tsv"), "--out", assocPath)
	assert.Error(t, err)
}

func TestEncodeTo(t *testing.T) {
	v := map[string]int{"runs": 2}

	var buf bytes.Buffer
	require.NoError(t, encodeTo(&buf, formatJSON, v))
	assert.Equal(t, "{\n  \"runs\": 2\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, encodeTo(&buf, formatYAML, v))
	assert.Equal(t, "runs: 2\n", buf.String())
}
