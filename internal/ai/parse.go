package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"finpilot/internal/core"
)

type extractedHolding struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	AssetClass string          `json:"assetClass"`
	Balance    json.RawMessage `json:"balance"`
}

// ParseHoldings decodes the model's extraction reply. It tolerates code
// fences, a bare array instead of the {"holdings": [...]} object, and
// balances written as strings ("$1,234.50"). Entries without a name or with
// an unreadable balance are skipped.
func ParseHoldings(reply string) ([]core.Asset, error) {
	raw := []byte(stripFences(reply))

	var rows []extractedHolding
	if bytes.HasPrefix(raw, []byte("[")) {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode holdings: %w", err)
		}
	} else {
		var wrapper struct {
			Holdings []extractedHolding `json:"holdings"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("decode holdings: %w", err)
		}
		rows = wrapper.Holdings
	}

	assets := make([]core.Asset, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		balance, ok := parseBalance(row.Balance)
		if !ok {
			continue
		}
		typ := strings.TrimSpace(row.Type)
		if typ == "" {
			typ = core.AssetInvestment
		}
		assets = append(assets, core.Asset{
			Name:       name,
			Type:       typ,
			AssetClass: strings.TrimSpace(row.AssetClass),
			Balance:    balance,
		})
	}
	return assets, nil
}

func parseBalance(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n >= 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := core.ParseAmount(s)
	return v, err == nil
}

// stripFences removes a surrounding ```json ... ``` block, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
