package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantyard/trendrank/internal/engine"
	"github.com/quantyard/trendrank/internal/oracle"
)

func sampleResult() *engine.Result {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return &engine.Result{
		RunID: "test-run",
		Order: []oracle.Item{"NASDAQ:AAPL", "NYSE:GE", "loosely-coded"},
		Table: map[oracle.Item][]oracle.Point{
			"NASDAQ:AAPL":  {{Date: jan, Value: 100}, {Date: feb, Value: 85.5}},
			"NYSE:GE":      {{Date: jan, Value: 12}},
			"loosely-coded": {{Date: feb, Value: 0.25}},
		},
		Invalid: []oracle.Item{"ZZZZ:NOPE"},
	}
}

func TestWriteWide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.csv")
	require.NoError(t, WriteWide(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "date,NASDAQ:AAPL,NYSE:GE,loosely-coded", lines[0])
	assert.Equal(t, "2024-01-01,100,12,", lines[1])
	assert.Equal(t, "2024-02-01,85.5,,0.25", lines[2])
}

func TestWriteLong_SplitsExchangeAndTicker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.csv")
	require.NoError(t, WriteLong(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)

	assert.Equal(t, "date,exchange,ticker,score", lines[0])
	assert.Equal(t, "2024-01-01,NASDAQ,AAPL,100", lines[1])
	assert.Equal(t, "2024-02-01,NASDAQ,AAPL,85.5", lines[2])
	assert.Equal(t, "2024-01-01,NYSE,GE,12", lines[3])
	// No colon: empty exchange column.
	assert.Equal(t, "2024-02-01,,loosely-coded,0.25", lines[4])
}

func TestWriteInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.txt")
	require.NoError(t, WriteInvalid(path, []oracle.Item{"A", "B"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", string(data))
}

func TestSummary(t *testing.T) {
	s := Summary(sampleResult())
	assert.Contains(t, s, "test-run")
	assert.Contains(t, s, "3 ranked, 1 invalid")
	assert.Contains(t, s, "1. NASDAQ:AAPL")
}
