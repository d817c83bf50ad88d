package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidalframe/tidal/internal/engine"
)

func outputTable(t *testing.T) *engine.Table {
	t.Helper()
	tbl, err := engine.NewTable(
		engine.Column{Name: "carrier", Cells: []engine.Value{engine.Str("UA"), engine.Str("AA")}},
		engine.Column{Name: "delay", Cells: []engine.Value{engine.Int(4), engine.Null{}}},
	)
	require.NoError(t, err)
	return tbl
}

func TestRenderDataset_TextHeaderAndMissing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDataset(&buf, "text", outputTable(t)))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "carrier")
	assert.Contains(t, lines[0], "delay")
	// Strings print bare, missing prints as NA.
	assert.Contains(t, lines[1], "UA")
	assert.Contains(t, lines[2], "NA")
}

func TestRenderDataset_TextGroupedPrintsKeyComment(t *testing.T) {
	g, err := engine.GroupBy(outputTable(t), []string{"carrier"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderDataset(&buf, "text", g))
	assert.True(t, strings.HasPrefix(buf.String(), "# groups: carrier\n"))
}

func TestRenderDataset_CSVMissingIsEmptyCell(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDataset(&buf, "csv", outputTable(t)))
	assert.Equal(t, "carrier,delay\nUA,4\nAA,\n", buf.String())
}

func TestRenderDataset_JSONRowMaps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDataset(&buf, "json", outputTable(t)))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "UA", rows[0]["carrier"])
	assert.Equal(t, float64(4), rows[0]["delay"])
	assert.Nil(t, rows[1]["delay"])
}

func TestRenderDataset_InvalidFormat(t *testing.T) {
	err := RenderDataset(&bytes.Buffer{}, "xml", outputTable(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRenderValues_TextOnePerLine(t *testing.T) {
	var buf bytes.Buffer
	vals := []engine.Value{engine.Int(4), engine.Null{}, engine.Str("x")}
	require.NoError(t, RenderValues(&buf, "text", vals))
	assert.Equal(t, "4\nNA\nx\n", buf.String())
}

func TestRenderValues_JSONNatives(t *testing.T) {
	var buf bytes.Buffer
	vals := []engine.Value{engine.Int(4), engine.Null{}}
	require.NoError(t, RenderValues(&buf, "json", vals))
	assert.JSONEq(t, "[4, null]", buf.String())
}

func TestExitError_CodeAndUnwrap(t *testing.T) {
	base := fmt.Errorf("boom")
	err := WrapExitError(ExitCommandError, "failed to read script", base)
	assert.Equal(t, "failed to read script: boom", err.Error())
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "bad pipeline")))
}
