package http

import (
	"net/http"

	"finpilot/internal/log"
	"finpilot/internal/sheets"
	"finpilot/internal/services"
)

type snapshotResponse struct {
	Snapshot sheets.Snapshot `json:"snapshot"`
	Ref      string          `json:"ref"`
}

func (s *Server) snapshotsEnabled(w http.ResponseWriter) bool {
	if s.snapshots == nil || !s.snapshots.Enabled() {
		ErrorResponse(http.StatusServiceUnavailable, services.ErrSnapshotsDisabled.Error()).Write(w)
		return false
	}
	return true
}

func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request, uid string) {
	if !s.snapshotsEnabled(w) {
		return
	}
	snap, ref, err := s.snapshots.Export(r.Context(), uid)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(snapshotResponse{Snapshot: snap, Ref: ref}).Write(w)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request, uid string) {
	if !s.snapshotsEnabled(w) {
		return
	}
	list, err := s.snapshots.List(r.Context(), uid)
	if err != nil {
		writeError(w, r, log.OpList+"_snapshots", err)
		return
	}
	if list == nil {
		list = []sheets.Snapshot{}
	}
	NewJSONResponse().Body(list).Write(w)
}
