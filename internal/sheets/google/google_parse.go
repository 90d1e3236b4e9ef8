package google

import (
	"fmt"
	"strings"
	"time"

	"finpilot/internal/core"
	ports "finpilot/internal/sheets"
)

// parseSnapshots converts a values matrix (as returned by Sheets API) into
// the snapshots of userID. Header and malformed rows are skipped.
func parseSnapshots(values [][]any, userID string) []ports.Snapshot {
	out := []ports.Snapshot{}
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) < 7 || row[1] != userID {
			continue
		}
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		nums := make([]float64, 5)
		ok := true
		for i := range nums {
			if nums[i], ok = parseNumber(row[i+2]); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, ports.Snapshot{
			Date:              date,
			UserID:            row[1],
			TotalAssets:       nums[0],
			TotalDebts:        nums[1],
			NetWorth:          nums[2],
			Savings:           nums[3],
			RetirementSuccess: nums[4],
		})
	}
	return out
}

// parseNumber reads a cell that may be formatted as currency. Net worth can
// be negative, which ParseAmount rejects, so the sign is handled here.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")
	v, err := core.ParseAmount(s)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
