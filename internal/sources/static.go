package sources

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/metalfolio/price-engine/internal/metals"
)

// FallbackPrices is the last-resort price set served when no upstream
// has ever answered. Values are only meant to be plausible, not fresh;
// the source label makes the degradation visible to clients.
func FallbackPrices() metals.Prices {
	return metals.Prices{
		metals.Gold:      2650.00,
		metals.Silver:    31.00,
		metals.Platinum:  980.00,
		metals.Palladium: 1020.00,
	}
}

// ETFLaunch is the month the metal proxy ETF universe becomes usable.
// Dates before it can only be answered by the macro table.
var ETFLaunch = time.Date(2006, time.April, 1, 0, 0, 0, 0, time.UTC)

//go:embed data/macro_monthly.csv
var macroMonthlyCSV string

// MacroTable serves the built-in monthly price history. The table
// carries gold and silver only; platinum and palladium columns are
// absent for the covered range and callers gap-fill around them. A
// month entry answers every day of that month, so a miss means the
// range genuinely is not loaded.
type MacroTable struct {
	once   sync.Once
	rows   map[string]metals.Prices // "2004-07" -> prices
	first  string
	last   string
	parseE error
}

// NewMacroTable returns the table backed by the embedded dataset.
func NewMacroTable() *MacroTable {
	return &MacroTable{}
}

func (t *MacroTable) load() {
	t.rows = make(map[string]metals.Prices)
	r := csv.NewReader(strings.NewReader(macroMonthlyCSV))
	records, err := r.ReadAll()
	if err != nil {
		t.parseE = fmt.Errorf("parse embedded macro table: %w", err)
		return
	}
	for i, rec := range records {
		if i == 0 || len(rec) < 3 { // header
			continue
		}
		gold, err1 := strconv.ParseFloat(rec[1], 64)
		silver, err2 := strconv.ParseFloat(rec[2], 64)
		if err1 != nil || err2 != nil {
			t.parseE = fmt.Errorf("bad macro row %q", rec)
			return
		}
		month := rec[0]
		t.rows[month] = metals.Prices{metals.Gold: gold, metals.Silver: silver}
		if t.first == "" || month < t.first {
			t.first = month
		}
		if month > t.last {
			t.last = month
		}
	}
}

// Lookup returns the monthly prices covering the given day, or a
// not_found error when the month is outside the loaded range.
func (t *MacroTable) Lookup(day time.Time) (metals.Prices, error) {
	t.once.Do(t.load)
	if t.parseE != nil {
		return nil, NewProviderError("macro-monthly", "table unavailable", t.parseE)
	}
	month := day.UTC().Format("2006-01")
	prices, ok := t.rows[month]
	if !ok {
		return nil, NewNotFoundError("macro-monthly",
			fmt.Sprintf("month %s outside loaded range %s..%s", month, t.first, t.last))
	}
	return prices.Copy(), nil
}

// Coverage reports the first and last loaded months.
func (t *MacroTable) Coverage() (first, last string) {
	t.once.Do(t.load)
	return t.first, t.last
}
