package worker

import (
	"context"
	"fmt"
	"time"

	"finpilot/internal/amqp"
	"finpilot/internal/core"
	"finpilot/internal/log"
)

// Processor runs extraction for one stored statement.
type Processor interface {
	Process(ctx context.Context, statementID string) error
}

// UnfinishedLister finds statements that never reached a terminal state and
// are not held by a live claim.
type UnfinishedLister interface {
	ListUnfinishedStatements(ctx context.Context, staleBefore time.Time, limit int) ([]string, error)
}

// Consumer delivers statement messages until ctx is done.
type Consumer interface {
	ConsumeStatements(ctx context.Context, handler func(context.Context, *amqp.StatementProcessMessage) error) error
}

// StatementWorker processes uploaded statements delivered over AMQP.
type StatementWorker struct {
	processor Processor
	lister    UnfinishedLister
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

func NewStatementWorker(processor Processor, lister UnfinishedLister, batchSize int) *StatementWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &StatementWorker{
		processor: processor,
		lister:    lister,
		batchSize: batchSize,
		logger:    log.Default(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleStatementMessage processes a single statement message from AMQP.
func (w *StatementWorker) HandleStatementMessage(ctx context.Context, msg *amqp.StatementProcessMessage) error {
	w.logger.InfoContext(ctx, "Processing statement message",
		log.FieldStatementID, msg.StatementID,
		log.FieldUserID, msg.UserID)

	if err := w.processor.Process(ctx, msg.StatementID); err != nil {
		return fmt.Errorf("process statement %s: %w", msg.StatementID, err)
	}
	return nil
}

// StartupCheck processes statements left unfinished by a previous run, such
// as uploads whose message was lost or a worker that stopped mid-extraction.
// Statements still inside their processing lease belong to another process
// and are skipped.
func (w *StatementWorker) StartupCheck(ctx context.Context) error {
	ids, err := w.lister.ListUnfinishedStatements(ctx, w.now().Add(-core.StatementLease), w.batchSize)
	if err != nil {
		return fmt.Errorf("list unfinished statements: %w", err)
	}
	if len(ids) == 0 {
		w.logger.InfoContext(ctx, "No unfinished statements found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "Found unfinished statements on startup, processing",
		"count", len(ids))

	processed, failed := 0, 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processor.Process(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to process statement during startup",
				log.FieldStatementID, id, log.FieldError, err)
			failed++
			continue
		}
		processed++
	}

	w.logger.InfoContext(ctx, "Startup check completed",
		"total", len(ids),
		"processed", processed,
		"errors", failed)
	return nil
}

// Run performs the startup check and then consumes until ctx is cancelled.
func (w *StatementWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.StartupCheck(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup check failed", log.FieldError, err)
	}
	return consumer.ConsumeStatements(ctx, w.HandleStatementMessage)
}
