// Package output writes the run artifacts: the resolved value table as a
// wide or long CSV and the invalid-item list. All writes are atomic.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/quantyard/trendrank/internal/engine"
	atomicio "github.com/quantyard/trendrank/internal/io"
	"github.com/quantyard/trendrank/internal/oracle"
)

const dateLayout = "2006-01-02"

// WriteWide writes rows per date, one column per item in ranking order.
// Dates an item has no observation for get empty cells.
func WriteWide(path string, result *engine.Result) error {
	dates := collectDates(result)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(result.Order)+1)
	header = append(header, "date")
	for _, item := range result.Order {
		header = append(header, string(item))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	byItemDate := indexTable(result)
	for _, date := range dates {
		row := make([]string, 0, len(header))
		row = append(row, date)
		for _, item := range result.Order {
			if v, ok := byItemDate[item][date]; ok {
				row = append(row, formatValue(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicio.WriteFileAtomic(path, buf.Bytes())
}

// WriteLong writes the four-column layout: date, exchange, ticker, score.
// Items coded EXCHANGE:TICKER split on the first colon; anything else keeps
// an empty exchange column.
func WriteLong(path string, result *engine.Result) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "exchange", "ticker", "score"}); err != nil {
		return err
	}

	for _, item := range result.Order {
		exchange, ticker := splitItem(item)
		for _, p := range result.Table[item] {
			row := []string{p.Date.Format(dateLayout), exchange, ticker, formatValue(p.Value)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicio.WriteFileAtomic(path, buf.Bytes())
}

// WriteInvalid writes the invalid-item list, one item per line.
func WriteInvalid(path string, invalid []oracle.Item) error {
	lines := make([]string, len(invalid))
	for i, item := range invalid {
		lines[i] = string(item)
	}
	return atomicio.WriteLinesAtomic(path, lines)
}

func splitItem(item oracle.Item) (exchange, ticker string) {
	s := string(item)
	if idx := strings.Index(s, ":"); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return "", s
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func collectDates(result *engine.Result) []string {
	set := make(map[string]bool)
	for _, series := range result.Table {
		for _, p := range series {
			set[p.Date.Format(dateLayout)] = true
		}
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func indexTable(result *engine.Result) map[oracle.Item]map[string]float64 {
	out := make(map[oracle.Item]map[string]float64, len(result.Table))
	for item, series := range result.Table {
		byDate := make(map[string]float64, len(series))
		for _, p := range series {
			byDate[p.Date.Format(dateLayout)] = p.Value
		}
		out[item] = byDate
	}
	return out
}

// Summary renders a short human-readable run summary for the console.
func Summary(result *engine.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %d ranked, %d invalid, %d queries (%d cache hits)\n",
		result.RunID, len(result.Order), len(result.Invalid),
		result.Stats.QueriesIssued, result.Stats.CacheHits)

	top := result.Order
	if len(top) > 10 {
		top = top[:10]
	}
	for i, item := range top {
		fmt.Fprintf(&sb, "  %2d. %s\n", i+1, item)
	}
	return sb.String()
}
