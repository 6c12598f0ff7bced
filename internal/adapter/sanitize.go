package adapter

import (
	"strconv"

	"github.com/matthijsko/arbitrage-bot/internal/book"
)

// sanitizeRawLevels converts raw [price, size] pairs as decoded from venue
// JSON (often strings) into book.Level, dropping anything malformed. This
// mirrors the original's services/exchanges.py _sanitize_levels: corrupt
// rows are silently skipped rather than aborting the whole book.
func sanitizeRawLevels(rows [][2]any) []book.Level {
	out := make([]book.Level, 0, len(rows))
	for _, row := range rows {
		price, ok := toFloat(row[0])
		if !ok {
			continue
		}
		size, ok := toFloat(row[1])
		if !ok {
			continue
		}
		if price > 0 && size > 0 {
			out = append(out, book.Level{Price: price, SizeBase: size})
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
