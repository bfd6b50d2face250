package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/service"
)

// MailboxSettingsSource returns the mailbox settings, read fresh each tick.
type MailboxSettingsSource func(ctx context.Context) (config.MailboxConfig, error)

// PassRunner runs one ingestion pass.
type PassRunner interface {
	RunPass(ctx context.Context, cfg config.MailboxConfig) (service.PassReport, error)
}

// MailboxPoller owns the background ingestion loop. Settings are re-read on
// every tick, so enabling or retiming checks needs no restart.
type MailboxPoller struct {
	settings MailboxSettingsSource
	runner   PassRunner
	fallback time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMailboxPoller constructs a stopped poller. fallback is the sleep used
// while checking is disabled or settings cannot be read.
func NewMailboxPoller(settings MailboxSettingsSource, runner PassRunner, fallback time.Duration, logger *zap.Logger) *MailboxPoller {
	if fallback <= 0 {
		fallback = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxPoller{
		settings: settings,
		runner:   runner,
		fallback: fallback,
		logger:   logger.Named("poller"),
	}
}

// Start spawns the worker. It reports false if one is already running.
func (p *MailboxPoller) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	p.logger.Info("mailbox poller started")
	return true
}

// Stop cancels the worker and waits for it to exit. An in-flight pass is
// allowed to finish first.
func (p *MailboxPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.logger.Info("mailbox poller stopped")
}

// IsRunning reports whether the worker is active.
func (p *MailboxPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

func (p *MailboxPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := p.tick(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick runs at most one pass and returns how long to sleep afterwards.
func (p *MailboxPoller) tick(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return 0
	}
	cfg, err := p.settings(ctx)
	if err != nil {
		p.logger.Warn("mailbox settings unavailable", zap.Error(err))
		return p.fallback
	}
	if !cfg.Active() {
		return p.fallback
	}
	if err := p.runPass(context.WithoutCancel(ctx), cfg); err != nil {
		p.logger.Error("ingestion pass failed", zap.Error(err))
	}
	return cfg.Interval()
}

func (p *MailboxPoller) runPass(ctx context.Context, cfg config.MailboxConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()
	_, err = p.runner.RunPass(ctx, cfg)
	return err
}
