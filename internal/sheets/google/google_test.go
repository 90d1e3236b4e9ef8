package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ports "finpilot/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the two Values endpoints the client uses, backed by an
// in-memory grid.
type fakeSheets struct {
	mu   sync.Mutex
	rows [][]any
	puts []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
	case http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, vr.Values...)
		f.puts = append(f.puts, r.URL.Query().Get("valueInputOption"))
		json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(vr.Values)})
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-id", "")
}

func TestClient_AppendSnapshot(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()
	snap := ports.Snapshot{
		Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), UserID: "u1",
		TotalAssets: 335000, TotalDebts: 205000, NetWorth: 130000, Savings: 15000, RetirementSuccess: 64,
	}

	ref, err := c.AppendSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}
	if ref != "Snapshots!A2:G2" {
		t.Errorf("first ref = %q, want Snapshots!A2:G2", ref)
	}
	if len(fake.rows) != 2 || fake.rows[0][0] != "Date" {
		t.Fatalf("expected header plus one row, got %v", fake.rows)
	}

	ref, err = c.AppendSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("AppendSnapshot: %v", err)
	}
	if ref != "Snapshots!A3:G3" {
		t.Errorf("second ref = %q, want Snapshots!A3:G3", ref)
	}
	for _, opt := range fake.puts {
		if opt != "USER_ENTERED" {
			t.Errorf("valueInputOption = %q, want USER_ENTERED", opt)
		}
	}

	if _, err := c.AppendSnapshot(ctx, ports.Snapshot{}); err == nil {
		t.Error("expected error for snapshot without user")
	}
}

func TestClient_ListSnapshots(t *testing.T) {
	fake := &fakeSheets{rows: [][]any{
		{"Date", "User", "Total Assets", "Total Debts", "Net Worth", "Savings", "Retirement Success %"},
		{"2025-01-01", "u1", "$300,000", "$210,000", "$90,000", "$12,000", "55%"},
		{"2025-01-01", "u2", "1", "0", "1", "0", "0"},
		{"2025-02-01", "u1", "1000", "5000", "-4000", "0", "0"},
	}}
	c := newTestClient(t, fake)

	got, err := c.ListSnapshots(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snapshots, got %+v", got)
	}
	if got[0].NetWorth != 90000 || got[0].RetirementSuccess != 55 {
		t.Errorf("unexpected first snapshot %+v", got[0])
	}
	if got[1].NetWorth != -4000 {
		t.Errorf("expected negative net worth, got %v", got[1].NetWorth)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheet: DefaultSheetName}
	if _, err := c.AppendSnapshot(context.Background(), ports.Snapshot{UserID: "u1"}); err == nil ||
		!strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected not initialized error, got %v", err)
	}
}

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := NewClient(context.Background(), " ", "")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewClient(context.Background(), "sheet-id", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected credentials error, got %v", err)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234", 1234, true},
		{"-$3.50", -3.5, true},
		{"64%", 64, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
