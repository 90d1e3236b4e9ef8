package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"finpilot/internal/core"
	"finpilot/internal/log"
	"finpilot/internal/records"
)

// recordSet adapts one kind of user record to the generic CRUD handlers.
type recordSet[T any] struct {
	kind   string
	list   func(ctx context.Context, userID string) ([]T, error)
	get    func(ctx context.Context, userID string, id int64) (T, error)
	create func(ctx context.Context, v T) (T, error)
	update func(ctx context.Context, v T) (T, error)
	delete func(ctx context.Context, userID string, id int64) error
	// bind stamps owner and id onto a decoded body.
	bind func(v *T, userID string, id int64)
}

func assetRecords(st records.Store) recordSet[core.Asset] {
	return recordSet[core.Asset]{
		kind: "asset", list: st.ListAssets, get: st.GetAsset,
		create: st.CreateAsset, update: st.UpdateAsset, delete: st.DeleteAsset,
		bind: func(a *core.Asset, uid string, id int64) { a.UserID, a.ID = uid, id },
	}
}

func debtRecords(st records.Store) recordSet[core.Debt] {
	return recordSet[core.Debt]{
		kind: "debt", list: st.ListDebts, get: st.GetDebt,
		create: st.CreateDebt, update: st.UpdateDebt, delete: st.DeleteDebt,
		bind: func(d *core.Debt, uid string, id int64) { d.UserID, d.ID = uid, id },
	}
}

func goalRecords(st records.Store) recordSet[core.Goal] {
	return recordSet[core.Goal]{
		kind: "goal", list: st.ListGoals, get: st.GetGoal,
		create: st.CreateGoal, update: st.UpdateGoal, delete: st.DeleteGoal,
		bind: func(g *core.Goal, uid string, id int64) { g.UserID, g.ID = uid, id },
	}
}

func insuranceRecords(st records.Store) recordSet[core.InsurancePolicy] {
	return recordSet[core.InsurancePolicy]{
		kind: "insurance", list: st.ListInsurance, get: st.GetInsurance,
		create: st.CreateInsurance, update: st.UpdateInsurance, delete: st.DeleteInsurance,
		bind: func(p *core.InsurancePolicy, uid string, id int64) { p.UserID, p.ID = uid, id },
	}
}

// registerCRUD mounts list/create on base and get/update/delete on base/{id}.
func registerCRUD[T any](mux *http.ServeMux, s *Server, base string, rs recordSet[T]) {
	item := base + "/{id}"
	audit := log.NewStructuredLogger(log.Default(log.ComponentStorage))

	mux.HandleFunc("GET "+base, s.withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		items, err := rs.list(r.Context(), uid)
		if err != nil {
			writeError(w, r, log.OpList+"_"+rs.kind, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		NewJSONResponse().Body(items).Write(w)
	}))

	mux.HandleFunc("POST "+base, s.withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		var v T
		if err := decodeJSON(w, r, &v); err != nil {
			writeError(w, r, log.OpCreate+"_"+rs.kind, err)
			return
		}
		rs.bind(&v, uid, 0)
		created, err := rs.create(r.Context(), v)
		if err != nil {
			writeError(w, r, log.OpCreate+"_"+rs.kind, err)
			return
		}
		audit.LogRecordChanged(r.Context(), uid, rs.kind, recordID(created), log.OpCreate)
		NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
	}))

	mux.HandleFunc("GET "+item, s.withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, log.OpRead+"_"+rs.kind, err)
			return
		}
		v, err := rs.get(r.Context(), uid, id)
		if err != nil {
			writeError(w, r, log.OpRead+"_"+rs.kind, err)
			return
		}
		NewJSONResponse().Body(v).Write(w)
	}))

	mux.HandleFunc("PUT "+item, s.withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, log.OpUpdate+"_"+rs.kind, err)
			return
		}
		var v T
		if err := decodeJSON(w, r, &v); err != nil {
			writeError(w, r, log.OpUpdate+"_"+rs.kind, err)
			return
		}
		rs.bind(&v, uid, id)
		updated, err := rs.update(r.Context(), v)
		if err != nil {
			writeError(w, r, log.OpUpdate+"_"+rs.kind, err)
			return
		}
		audit.LogRecordChanged(r.Context(), uid, rs.kind, id, log.OpUpdate)
		NewJSONResponse().Body(updated).Write(w)
	}))

	mux.HandleFunc("DELETE "+item, s.withUser(func(w http.ResponseWriter, r *http.Request, uid string) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, log.OpDelete+"_"+rs.kind, err)
			return
		}
		if err := rs.delete(r.Context(), uid, id); err != nil {
			writeError(w, r, log.OpDelete+"_"+rs.kind, err)
			return
		}
		audit.LogRecordChanged(r.Context(), uid, rs.kind, id, log.OpDelete)
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
	}))
}

// recordID pulls the id out of a created record for logging.
func recordID(v any) any {
	switch rec := v.(type) {
	case core.Asset:
		return rec.ID
	case core.Debt:
		return rec.ID
	case core.Goal:
		return rec.ID
	case core.InsurancePolicy:
		return rec.ID
	}
	return nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, uid string) {
	p, err := s.store.GetProfile(r.Context(), uid)
	if err != nil {
		writeError(w, r, "get_profile", err)
		return
	}
	if p == nil {
		NotFoundError("profile not found").Write(w)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request, uid string) {
	var p core.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, "put_profile", err)
		return
	}
	p.UserID = uid
	p.Name = sanitizeInput(p.Name)
	if err := s.store.SaveProfile(r.Context(), p); err != nil {
		writeError(w, r, "put_profile", err)
		return
	}
	NewJSONResponse().Body(p).Write(w)
}

func monthParam(r *http.Request) (string, error) {
	month := strings.TrimSpace(r.PathValue("month"))
	if !core.ValidMonthKey(month) {
		return "", &core.ValidationError{Field: "month", Err: core.ErrInvalidMonth}
	}
	return month, nil
}

func (s *Server) handleGetExpenses(w http.ResponseWriter, r *http.Request, uid string) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, "get_expenses", err)
		return
	}
	rec, err := s.store.GetExpenses(r.Context(), uid, month)
	if err != nil {
		writeError(w, r, "get_expenses", err)
		return
	}
	if rec == nil {
		NotFoundError(fmt.Sprintf("no expenses recorded for %s", month)).Write(w)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

// handlePutExpenses upserts the month's record. A missing total is filled
// with the sum of the categories.
func (s *Server) handlePutExpenses(w http.ResponseWriter, r *http.Request, uid string) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, r, "put_expenses", err)
		return
	}
	var rec core.ExpenseRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, r, "put_expenses", err)
		return
	}
	rec.UserID = uid
	rec.Month = month
	if rec.Total == 0 {
		rec.Total = core.RoundCents(rec.Sum())
	}
	if err := s.store.SaveExpenses(r.Context(), rec); err != nil {
		writeError(w, r, "put_expenses", err)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}
