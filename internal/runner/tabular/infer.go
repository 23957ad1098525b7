package tabular

import (
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
)

var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"02.01.2006",
	"02.01.2006 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
}

// InferTypes returns one semantic type per header of ds
func InferTypes(ds *Dataset) []domain.SemanticType {
	out := make([]domain.SemanticType, len(ds.Headers))
	for i := range ds.Headers {
		out[i] = InferColumn(ds.Column(i))
	}
	return out
}

// InferColumn picks the most specific type every non-empty value satisfies.
// Priority: integral, fractional, boolean, date/time, text.
func InferColumn(values []string) domain.SemanticType {
	seen := false
	allInt, allFloat, allBool, allTime := true, true, true, true

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if allTime {
			if _, ok := parseTimestamp(v); !ok {
				allTime = false
			}
		}
		if !allInt && !allFloat && !allBool && !allTime {
			break
		}
	}

	switch {
	case !seen:
		return domain.TypeText
	case allInt:
		return domain.TypeNumber
	case allFloat:
		return domain.TypeFloat
	case allBool:
		return domain.TypeBoolean
	case allTime:
		return domain.TypeTimestamp
	default:
		return domain.TypeText
	}
}

// Convert parses v as t. Empty values and values that do not parse become nil
// for non-text types.
func Convert(v string, t domain.SemanticType) any {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}

	switch t {
	case domain.TypeNumber:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case domain.TypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case domain.TypeBoolean:
		if b, ok := parseBool(s); ok {
			return b
		}
	case domain.TypeTimestamp:
		if ts, ok := parseTimestamp(s); ok {
			return ts
		}
	default:
		return v
	}
	return nil
}

// ConvertRows converts every cell of ds according to types
func ConvertRows(ds *Dataset, types []domain.SemanticType) [][]any {
	out := make([][]any, len(ds.Rows))
	for r, row := range ds.Rows {
		values := make([]any, len(types))
		for c, t := range types {
			values[c] = Convert(row[c], t)
		}
		out[r] = values
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
