package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"finpilot/internal/ai"
	"finpilot/internal/core"
	"finpilot/internal/log"
	"finpilot/internal/records"
)

// ErrEmptyStatement is returned when an upload has no content.
var ErrEmptyStatement = errors.New("empty statement")

// ErrUnsupportedStatement is returned for uploads that are not plain text,
// such as PDFs or spreadsheets.
var ErrUnsupportedStatement = errors.New("statement must be a text file")

// processTimeout bounds one in-process extraction run. It matches the claim
// lease so a run never outlives its claim.
const processTimeout = core.StatementLease

// Publisher hands a statement to the worker queue.
type Publisher interface {
	PublishStatement(ctx context.Context, statementID, userID string) error
}

// StatementStore is the persistence needed to track and apply statements.
type StatementStore interface {
	records.StatementStore
	CreateAssets(ctx context.Context, assets []core.Asset) error
}

// StatementService stores uploaded statements and turns them into assets.
type StatementService struct {
	store     StatementStore
	ai        ai.Client
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time

	// background runs in-process processing. Tests replace it to run inline.
	background func(func())
}

// NewStatementService wires the service. publisher may be nil, in which case
// statements are processed in-process.
func NewStatementService(store StatementStore, client ai.Client, publisher Publisher) *StatementService {
	return &StatementService{
		store:      store,
		ai:         client,
		publisher:  publisher,
		logger:     log.Default(log.ComponentStatement),
		now:        time.Now,
		background: func(f func()) { go f() },
	}
}

// Upload saves the statement as pending and schedules processing.
func (s *StatementService) Upload(ctx context.Context, userID, filename string, content []byte) (core.Statement, error) {
	if len(content) == 0 {
		return core.Statement{}, ErrEmptyStatement
	}
	if !isText(content) {
		return core.Statement{}, ErrUnsupportedStatement
	}

	now := s.now().UTC().Truncate(time.Second)
	st := core.Statement{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  filename,
		Content:   content,
		Status:    core.StatementPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateStatement(ctx, st); err != nil {
		return core.Statement{}, fmt.Errorf("create statement: %w", err)
	}

	s.schedule(ctx, st)
	return st, nil
}

func (s *StatementService) schedule(ctx context.Context, st core.Statement) {
	if s.publisher != nil {
		err := s.publisher.PublishStatement(ctx, st.ID, st.UserID)
		if err == nil {
			return
		}
		s.logger.WarnContext(ctx, "Publish failed, processing in-process",
			log.FieldStatementID, st.ID, log.FieldError, err)
	}

	id := st.ID
	s.background(func() {
		bg, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		if err := s.Process(bg, id); err != nil {
			s.logger.ErrorContext(bg, "Statement processing failed",
				log.FieldStatementID, id, log.FieldError, err)
		}
	})
}

// Process extracts holdings from a stored statement and appends them as
// assets. The statement ends completed or failed; it is never retried. A
// statement another process is still working on is left alone.
func (s *StatementService) Process(ctx context.Context, statementID string) error {
	st, err := s.store.GetStatement(ctx, statementID)
	if err != nil {
		return fmt.Errorf("get statement: %w", err)
	}
	if st.Done() {
		s.logger.InfoContext(ctx, "Statement already processed",
			log.FieldStatementID, st.ID, log.FieldStatus, string(st.Status))
		return nil
	}

	claimed, err := s.store.ClaimStatement(ctx, st.ID, s.now().Add(-core.StatementLease))
	if err != nil {
		return fmt.Errorf("claim statement: %w", err)
	}
	if !claimed {
		s.logger.InfoContext(ctx, "Statement claimed elsewhere, skipping",
			log.FieldStatementID, st.ID)
		return nil
	}

	count, procErr := s.extract(ctx, st)
	if procErr != nil {
		if err := s.store.UpdateStatementStatus(ctx, st.ID, core.StatementFailed, 0, procErr.Error()); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return procErr
	}

	if err := s.store.UpdateStatementStatus(ctx, st.ID, core.StatementCompleted, count, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	s.logger.InfoContext(ctx, "Statement processed",
		log.FieldStatementID, st.ID,
		log.FieldUserID, st.UserID,
		log.FieldAssetCount, count)
	return nil
}

func (s *StatementService) extract(ctx context.Context, st core.Statement) (int, error) {
	text := strings.ToValidUTF8(string(st.Content), "")
	holdings, err := s.ai.ExtractHoldings(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("extract holdings: %w", err)
	}
	if len(holdings) == 0 {
		return 0, nil
	}
	for i := range holdings {
		holdings[i].UserID = st.UserID
	}
	if err := s.store.CreateAssets(ctx, holdings); err != nil {
		return 0, fmt.Errorf("save holdings: %w", err)
	}
	return len(holdings), nil
}

// isText accepts UTF-8 content with no NUL bytes that sniffs as text/*.
func isText(b []byte) bool {
	if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(b), "text/")
}

// Status returns the statement if it belongs to userID.
func (s *StatementService) Status(ctx context.Context, userID, statementID string) (core.Statement, error) {
	st, err := s.store.GetStatement(ctx, statementID)
	if err != nil {
		return core.Statement{}, err
	}
	if st.UserID != userID {
		return core.Statement{}, fmt.Errorf("statement %s: %w", statementID, records.ErrNotFound)
	}
	return st, nil
}

