package backtest

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"adaptrader/internal/domain"
)

// LoadBarsCSV reads OHLCV bars from a CSV file with the columns
// timestamp,open,high,low,close,volume. Timestamps are unix seconds,
// unix milliseconds or RFC3339. A header row is skipped when present.
func LoadBarsCSV(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open bars csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read bars csv")
	}
	if len(rows) == 0 {
		return nil, errors.New("bars csv is empty")
	}

	if _, err := parseTimestamp(rows[0][0]); err != nil {
		rows = rows[1:] // header row
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := parseBar(row)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		if len(bars) > 0 && !bar.Timestamp.After(bars[len(bars)-1].Timestamp) {
			return nil, errors.Errorf("row %d: timestamps must strictly increase", i+1)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(row []string) (domain.Bar, error) {
	ts, err := parseTimestamp(row[0])
	if err != nil {
		return domain.Bar{}, errors.Wrap(err, "parse timestamp")
	}

	fields := make([]decimal.Decimal, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i, name := range names {
		fields[i], err = decimal.NewFromString(row[i+1])
		if err != nil {
			return domain.Bar{}, errors.Wrapf(err, "parse %s", name)
		}
	}

	bar := domain.Bar{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if bar.High.LessThan(bar.Low) {
		return domain.Bar{}, errors.New("high below low")
	}
	return bar, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		if unix > 1e12 {
			return time.UnixMilli(unix).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "unsupported timestamp %q", s)
	}
	return ts.UTC(), nil
}
