package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"finpilot/internal/core"
	"finpilot/internal/log"
)

var errStatementsDisabled = errors.New("statement processing not configured")

type statementResponse struct {
	ID              string               `json:"id"`
	Filename        string               `json:"filename"`
	Status          core.StatementStatus `json:"status"`
	Error           string               `json:"error,omitempty"`
	AssetsExtracted int                  `json:"assetsExtracted"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

func toStatementResponse(st core.Statement) statementResponse {
	return statementResponse{
		ID:              st.ID,
		Filename:        st.Filename,
		Status:          st.Status,
		Error:           st.Error,
		AssetsExtracted: st.AssetsExtracted,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	}
}

// handleUploadStatement accepts a multipart upload in field "file" and
// answers 202 with the statement id to poll.
func (s *Server) handleUploadStatement(w http.ResponseWriter, r *http.Request, uid string) {
	if s.statements == nil {
		ErrorResponse(http.StatusServiceUnavailable, errStatementsDisabled.Error()).Write(w)
		return
	}

	// room for multipart framing around the file
	r.Body = http.MaxBytesReader(w, r.Body, s.maxStatementBytes+64<<10)
	if err := r.ParseMultipartForm(s.maxStatementBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "statement too large").Write(w)
			return
		}
		BadRequestError("expected multipart form with a file field").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxStatementBytes+1))
	if err != nil {
		writeError(w, r, "upload_statement", fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(content)) > s.maxStatementBytes {
		ErrorResponse(http.StatusRequestEntityTooLarge, "statement too large").Write(w)
		return
	}

	filename := sanitizeInput(filepath.Base(header.Filename))
	st, err := s.statements.Upload(r.Context(), uid, filename, content)
	if err != nil {
		writeError(w, r, "upload_statement", err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Statement accepted",
		log.FieldStatementID, st.ID, "bytes", len(content))
	NewJSONResponse().
		Status(http.StatusAccepted).
		Header("Location", "/api/statements/"+st.ID).
		Body(toStatementResponse(st)).
		Write(w)
}

func (s *Server) handleStatementStatus(w http.ResponseWriter, r *http.Request, uid string) {
	if s.statements == nil {
		ErrorResponse(http.StatusServiceUnavailable, errStatementsDisabled.Error()).Write(w)
		return
	}
	st, err := s.statements.Status(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "statement_status", err)
		return
	}
	NewJSONResponse().Body(toStatementResponse(st)).Write(w)
}
