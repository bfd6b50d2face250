package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/mailbox"
	"github.com/spec-kit/crm-helpdesk/internal/observability"
)

// ErrPassInProgress is returned when another process holds the pass lock.
var ErrPassInProgress = errors.New("ingestion pass already in progress")

// Pass results recorded in metrics.
const (
	PassResultOK      = "ok"
	PassResultFailed  = "failed"
	PassResultSkipped = "skipped"
)

// PassReport summarises one ingestion pass.
type PassReport struct {
	Fetched    int `json:"fetched"`
	Created    int `json:"created"`
	Appended   int `json:"appended"`
	Duplicates int `json:"duplicates"`
	Reopened   int `json:"reopened"`
	Failed     int `json:"failed"`
}

// MessageReconciler maps one inbound message to a ticket mutation.
type MessageReconciler interface {
	Reconcile(ctx context.Context, msg *domain.InboxMessage, ack Acknowledger) (Reconciliation, error)
}

// IngestionService runs mailbox passes. At most one pass runs at a time in
// this process; the optional PassLock extends that across replicas.
type IngestionService struct {
	dialer     mailbox.Dialer
	reconciler MessageReconciler
	lock       PassLock
	metrics    *observability.Metrics
	logger     *zap.Logger
	sem        chan struct{}

	checkNowTimeout time.Duration
}

// IngestionDependencies bundles collaborators for ingestion.
type IngestionDependencies struct {
	Dialer     mailbox.Dialer
	Reconciler MessageReconciler
	Lock       PassLock
	Metrics    *observability.Metrics
	Logger     *zap.Logger

	// CheckNowTimeout bounds on-demand passes. Defaults to five minutes.
	CheckNowTimeout time.Duration
}

// NewIngestionService constructs the service.
func NewIngestionService(deps IngestionDependencies) *IngestionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	checkNowTimeout := deps.CheckNowTimeout
	if checkNowTimeout <= 0 {
		checkNowTimeout = 5 * time.Minute
	}
	return &IngestionService{
		dialer:     deps.Dialer,
		reconciler: deps.Reconciler,
		lock:       deps.Lock,
		metrics:    deps.Metrics,
		logger:     logger.Named("ingestion"),
		sem:        make(chan struct{}, 1),

		checkNowTimeout: checkNowTimeout,
	}
}

// RunPass fetches unseen messages and reconciles each in mailbox order. A
// connection failure aborts the pass; a failure on one message leaves it
// unseen and the pass moves on.
func (s *IngestionService) RunPass(ctx context.Context, cfg config.MailboxConfig) (PassReport, error) {
	return s.pass(ctx, ctx, cfg)
}

// pass waits for the slot and the shared lock on waitCtx, then runs on ctx.
func (s *IngestionService) pass(waitCtx, ctx context.Context, cfg config.MailboxConfig) (PassReport, error) {
	select {
	case s.sem <- struct{}{}:
	case <-waitCtx.Done():
		return PassReport{}, waitCtx.Err()
	}
	defer func() { <-s.sem }()

	if s.lock != nil {
		release, err := s.lock.Acquire(waitCtx)
		switch {
		case err == nil:
			defer release(context.WithoutCancel(ctx))
		case errors.Is(err, ErrPassInProgress):
			s.metrics.RecordPass(PassResultSkipped)
			s.logger.Info("pass skipped; lock held elsewhere")
			return PassReport{}, err
		case waitCtx.Err() != nil:
			return PassReport{}, waitCtx.Err()
		default:
			// The shared lock is optional; the per-process slot still holds.
			s.logger.Warn("pass lock unavailable; continuing with local exclusion only", zap.Error(err))
		}
	}

	started := time.Now()
	report, err := s.run(ctx, cfg)
	if err != nil {
		s.metrics.RecordPass(PassResultFailed)
		s.logger.Error("pass failed", zap.String("host", cfg.Host), zap.Error(err))
		return report, err
	}
	s.metrics.RecordPass(PassResultOK)
	s.logger.Info("pass finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("appended", report.Appended),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("reopened", report.Reopened),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(started)))
	return report, nil
}

func (s *IngestionService) run(ctx context.Context, cfg config.MailboxConfig) (PassReport, error) {
	var report PassReport

	session, err := s.dialer.Dial(ctx, cfg)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Debug("logout failed", zap.Error(err))
		}
	}()

	uids, err := session.Unseen(ctx)
	if err != nil {
		return report, err
	}
	s.logger.Debug("pass started", zap.String("folder", cfg.Folder), zap.Int("unseen", len(uids)))

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Fetched++

		msg, err := session.Fetch(ctx, uid)
		if err != nil {
			var connErr *mailbox.ConnectionError
			if errors.As(err, &connErr) {
				return report, err
			}
			report.Failed++
			s.metrics.RecordMessage("failed")
			s.logger.Warn("skipping unparseable message", zap.Uint32("imap_uid", uid), zap.Error(err))
			continue
		}

		ack := func(ctx context.Context) error { return session.MarkSeen(ctx, uid) }
		result, err := s.reconciler.Reconcile(ctx, msg, ack)
		if err != nil {
			report.Failed++
			s.metrics.RecordMessage("failed")
			s.logger.Warn("reconcile failed; message left unseen",
				zap.Uint32("imap_uid", uid),
				zap.String("message_id", msg.MessageID),
				zap.Error(err))
			continue
		}
		s.metrics.RecordMessage(string(result.Outcome))
		switch result.Outcome {
		case OutcomeCreated:
			report.Created++
		case OutcomeAppended:
			report.Appended++
		case OutcomeDuplicate:
			report.Duplicates++
		}
		if result.Reopened {
			report.Reopened++
		}
	}
	return report, nil
}

// ErrMailboxNotConfigured is returned by CheckNow without credentials.
var ErrMailboxNotConfigured = errors.New("mailbox not configured")

// CheckNow runs an on-demand pass. It ignores the enabled flag but needs
// credentials. Waiting for a running pass honours ctx; the pass itself is
// bounded by the check-now timeout instead.
func (s *IngestionService) CheckNow(ctx context.Context, cfg config.MailboxConfig) (PassReport, error) {
	if !cfg.Configured() {
		return PassReport{}, ErrMailboxNotConfigured
	}
	// The pass must not die with the HTTP request: a message stored but not
	// yet flagged would be ingested again by the next pass.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.checkNowTimeout)
	defer cancel()
	return s.pass(ctx, runCtx, cfg)
}
