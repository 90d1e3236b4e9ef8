package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finpilot/internal/advisor"
	"finpilot/internal/ai"
	"finpilot/internal/cache"
	"finpilot/internal/core"
	"finpilot/internal/records"
	"finpilot/internal/records/memory"
	"finpilot/internal/services"
	sheetsmem "finpilot/internal/sheets/memory"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeAI struct {
	answer string
}

func (f fakeAI) StreamChat(_ context.Context, _ string, _ []core.ChatMessage, onDelta func(string) error) (string, error) {
	for _, part := range strings.SplitAfter(f.answer, " ") {
		if err := onDelta(part); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

func (fakeAI) ExtractHoldings(context.Context, string) ([]core.Asset, error) {
	return nil, ai.ErrDisabled
}

type queuedPublisher struct{ ids []string }

func (p *queuedPublisher) PublishStatement(_ context.Context, id, _ string) error {
	p.ids = append(p.ids, id)
	return nil
}

type testEnv struct {
	srv   *Server
	store *memory.Store
	pub   *queuedPublisher
}

func newTestEnv(t *testing.T, opts Options, withSnapshots bool) *testEnv {
	t.Helper()
	store := memory.New()
	builder := advisor.NewBuilder(store, advisor.WithClock(func() time.Time { return testNow }))
	pub := &queuedPublisher{}

	var snapshots *services.SnapshotService
	if withSnapshots {
		snapshots = services.NewSnapshotService(builder, sheetsmem.New())
	}

	srv := NewServer(":0", Deps{
		Store:      store,
		Builder:    builder,
		Chat:       services.NewChatService(builder, fakeAI{answer: "You are on track."}, cache.NewMemorySessionStore(10, time.Hour), 10),
		Statements: services.NewStatementService(store, fakeAI{}, pub),
		Snapshots:  snapshots,
		Checks: map[string]func(context.Context) error{
			"sessions": func(context.Context) error { return nil },
		},
	}, opts)
	t.Cleanup(srv.limiter.Stop)
	return &testEnv{srv: srv, store: store, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{}, false)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status=%d body=%s", path, rec.Code, rec.Body.String())
		}
	}

	ready := decode[map[string]any](t, env.do(t, http.MethodGet, "/readyz", "", nil))
	checks := ready["checks"].(map[string]any)
	if checks["store"] != "ok" || checks["sessions"] != "ok" {
		t.Errorf("unexpected checks %v", checks)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t, Options{}, false)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRequiresUser(t *testing.T) {
	env := newTestEnv(t, Options{}, false)
	rec := env.do(t, http.MethodGet, "/api/assets", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if body := decode[map[string]string](t, rec); body["error"] == "" {
		t.Error("expected JSON error body")
	}
}

func TestAssetCRUD(t *testing.T) {
	env := newTestEnv(t, Options{}, false)

	rec := env.do(t, http.MethodPost, "/api/assets", "u1", map[string]any{
		"name": "Brokerage", "type": "Investment", "balance": 1000, "growthRate": 6,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[core.Asset](t, rec)
	if created.ID == 0 || created.Name != "Brokerage" {
		t.Fatalf("unexpected asset %+v", created)
	}
	item := fmt.Sprintf("/api/assets/%d", created.ID)

	list := decode[[]core.Asset](t, env.do(t, http.MethodGet, "/api/assets", "u1", nil))
	if len(list) != 1 {
		t.Fatalf("list len=%d", len(list))
	}
	if empty := env.do(t, http.MethodGet, "/api/assets", "u2", nil); strings.TrimSpace(empty.Body.String()) != "[]" {
		t.Errorf("other user list = %s, want []", empty.Body.String())
	}

	rec = env.do(t, http.MethodPut, item, "u1", map[string]any{
		"name": "Brokerage", "type": "Investment", "balance": 1500,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[core.Asset](t, env.do(t, http.MethodGet, item, "u1", nil)); got.Balance != 1500 {
		t.Errorf("balance after update = %v", got.Balance)
	}

	if rec := env.do(t, http.MethodGet, item, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user get status=%d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, item, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user delete status=%d, want 404", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, item, "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, item, "u1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status=%d", rec.Code)
	}
}

func TestRecordErrors(t *testing.T) {
	env := newTestEnv(t, Options{}, false)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/debts", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/goals", "", http.StatusBadRequest},
		{"negative balance", http.MethodPost, "/api/debts", map[string]any{"name": "Card", "balance": -1}, http.StatusUnprocessableEntity},
		{"goal without date", http.MethodPost, "/api/goals", map[string]any{"name": "Trip", "targetAmount": 100}, http.StatusUnprocessableEntity},
		{"bad id", http.MethodGet, "/api/insurance/abc", nil, http.StatusBadRequest},
		{"missing id", http.MethodGet, "/api/insurance/99", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.method, tt.path, "u1", tt.body); rec.Code != tt.want {
				t.Errorf("status=%d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, Options{}, false)

	if rec := env.do(t, http.MethodGet, "/api/profile", "u1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing profile status=%d", rec.Code)
	}
	rec := env.do(t, http.MethodPut, "/api/profile", "u1", map[string]any{"name": "Ada", "age": 40, "retirementAge": 65})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[core.Profile](t, env.do(t, http.MethodGet, "/api/profile", "u1", nil))
	if got.Name != "Ada" || got.Age == nil || *got.Age != 40 {
		t.Errorf("unexpected profile %+v", got)
	}

	if rec := env.do(t, http.MethodPut, "/api/profile", "u1", map[string]any{"age": 200}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid age status=%d", rec.Code)
	}
}

func TestExpenses(t *testing.T) {
	env := newTestEnv(t, Options{}, false)

	rec := env.do(t, http.MethodPut, "/api/expenses/2025-03", "u1", map[string]any{"housing": 2000, "dining": 150.5})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[core.ExpenseRecord](t, env.do(t, http.MethodGet, "/api/expenses/2025-03", "u1", nil))
	if got.Total != 2150.5 || got.Month != "2025-03" {
		t.Errorf("unexpected record %+v", got)
	}

	if rec := env.do(t, http.MethodGet, "/api/expenses/2025-04", "u1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing month status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/expenses/March", "u1", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status=%d", rec.Code)
	}
}

func seedUser(t *testing.T, store *memory.Store) core.Goal {
	t.Helper()
	ctx := context.Background()
	rate, contrib := 5.0, 2000.0
	age, retire := 40, 65
	if err := store.SaveProfile(ctx, core.Profile{UserID: "u1", Name: "Ada", Age: &age, RetirementAge: &retire, ExpectedGrowthRate: &rate}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateAsset(ctx, core.Asset{UserID: "u1", Name: "Index fund", Type: core.AssetInvestment, Balance: 15000, GrowthRate: &rate, AnnualContribution: &contrib}); err != nil {
		t.Fatal(err)
	}
	g, err := store.CreateGoal(ctx, core.Goal{UserID: "u1", Name: "Car", TargetAmount: 1000, TargetDate: core.NewDate(2027, 1, 1), Active: true})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestContextAndProjections(t *testing.T) {
	env := newTestEnv(t, Options{}, false)
	goal := seedUser(t, env.store)

	fc := decode[advisor.FinancialContext](t, env.do(t, http.MethodGet, "/api/context", "u1", nil))
	if fc.Month != "2025-03" || fc.Summary.CurrentSavings != 15000 {
		t.Errorf("unexpected context %+v", fc.Summary)
	}

	p := decode[advisor.SavingsProjection](t, env.do(t, http.MethodGet, "/api/projections?years=1", "u1", nil))
	if len(p.Points) != 2 || p.Points[1].Value != 17750 {
		t.Errorf("unexpected projection %+v", p.Points)
	}
	if rec := env.do(t, http.MethodGet, "/api/projections?years=abc", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad years status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/projections?years=500", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range years status=%d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/projections/chart.png?years=10", "u1", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("chart status=%d type=%s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("chart body is not a PNG")
	}

	success := decode[map[string]any](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/goals/%d/success", goal.ID), "u1", nil))
	if success["successPercent"] != float64(100) {
		t.Errorf("unexpected goal success %v", success)
	}
	if rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/goals/%d/success", goal.ID), "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user goal success status=%d", rec.Code)
	}
}

func TestGoalsActiveByDefault(t *testing.T) {
	env := newTestEnv(t, Options{}, false)

	rec := env.do(t, http.MethodPost, "/api/goals", "u1", map[string]any{
		"name": "House", "targetAmount": 50000, "targetDate": "2030-01-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	if g := decode[core.Goal](t, rec); !g.Active {
		t.Errorf("goal created without active flag is inactive: %+v", g)
	}

	rec = env.do(t, http.MethodPost, "/api/goals", "u1", map[string]any{
		"name": "Boat", "targetAmount": 9000, "targetDate": "2028-06-01", "active": false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create inactive status=%d body=%s", rec.Code, rec.Body.String())
	}

	fc := decode[advisor.FinancialContext](t, env.do(t, http.MethodGet, "/api/context", "u1", nil))
	if len(fc.Goals) != 1 || fc.Goals[0].Name != "House" {
		t.Errorf("context goals = %+v, want only House", fc.Goals)
	}
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, Options{}, false)

	rec := env.do(t, http.MethodPost, "/api/chat", "u1", map[string]string{"session_id": "s1", "message": "How am I doing?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "You are on track." {
		t.Errorf("body=%q", rec.Body.String())
	}
	if rec.Header().Get(SessionHeader) != "s1" {
		t.Errorf("session header=%q", rec.Header().Get(SessionHeader))
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type=%q", rec.Header().Get("Content-Type"))
	}

	rec = env.do(t, http.MethodPost, "/api/chat", "u1", map[string]string{"message": "hi"})
	if rec.Header().Get(SessionHeader) == "" {
		t.Error("expected a generated session id")
	}

	if rec := env.do(t, http.MethodPost, "/api/chat", "u1", map[string]string{"session_id": "s1", "message": " "}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty message status=%d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/chat/s1", "u1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("forget status=%d", rec.Code)
	}
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/statements", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserIDHeader, "u1")
	return req
}

func TestStatements(t *testing.T) {
	env := newTestEnv(t, Options{MaxStatementBytes: 64}, false)

	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, uploadRequest(t, "file", "march.csv", "VTI,1200"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status=%d body=%s", rec.Code, rec.Body.String())
	}
	st := decode[statementResponse](t, rec)
	if st.ID == "" || st.Status != core.StatementPending || st.Filename != "march.csv" {
		t.Errorf("unexpected statement %+v", st)
	}
	if len(env.pub.ids) != 1 || env.pub.ids[0] != st.ID {
		t.Errorf("published %v", env.pub.ids)
	}

	got := decode[statementResponse](t, env.do(t, http.MethodGet, "/api/statements/"+st.ID, "u1", nil))
	if got.Status != core.StatementPending {
		t.Errorf("status=%s", got.Status)
	}
	if rec := env.do(t, http.MethodGet, "/api/statements/"+st.ID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, uploadRequest(t, "document", "a.csv", "x"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file field status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, uploadRequest(t, "file", "big.csv", strings.Repeat("x", 100)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, uploadRequest(t, "file", "march.pdf", "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("pdf upload status=%d", rec.Code)
	}
	if len(env.pub.ids) != 1 {
		t.Errorf("rejected upload was published: %v", env.pub.ids)
	}
}

func TestSnapshots(t *testing.T) {
	disabled := newTestEnv(t, Options{}, false)
	if rec := disabled.do(t, http.MethodPost, "/api/snapshots", "u1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status=%d", rec.Code)
	}

	env := newTestEnv(t, Options{}, true)
	seedUser(t, env.store)
	rec := env.do(t, http.MethodPost, "/api/snapshots", "u1", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("export status=%d body=%s", rec.Code, rec.Body.String())
	}
	out := decode[snapshotResponse](t, rec)
	if out.Ref != "mem:1" || out.Snapshot.TotalAssets != 15000 {
		t.Errorf("unexpected snapshot %+v", out)
	}

	list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/api/snapshots", "u1", nil))
	if len(list) != 1 {
		t.Errorf("list len=%d", len(list))
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2}, false)
	body := map[string]any{"name": "Card", "balance": 10}

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/debts", "u1", body); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/debts", "u1", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rec := env.do(t, http.MethodGet, "/api/debts", "u1", nil); rec.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", records.ErrNotFound), http.StatusNotFound},
		{&core.ValidationError{Field: "name", Err: core.ErrEmptyName}, http.StatusUnprocessableEntity},
		{services.ErrEmptyMessage, http.StatusUnprocessableEntity},
		{services.ErrUnsupportedStatement, http.StatusUnsupportedMediaType},
		{services.ErrSnapshotsDisabled, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), "test", errors.New("secret dsn"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}
