package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/service"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	ran     chan struct{}
	err     error
	panicky bool
}

func (r *fakeRunner) RunPass(ctx context.Context, cfg config.MailboxConfig) (service.PassReport, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.ran != nil {
		select {
		case r.ran <- struct{}{}:
		default:
		}
	}
	if r.panicky {
		panic("boom")
	}
	return service.PassReport{}, r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func activeSettings(ctx context.Context) (config.MailboxConfig, error) {
	return config.MailboxConfig{Enabled: true, Host: "imap.example.it", IntervalSeconds: 60}, nil
}

func TestPollerStartStop(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 1)}
	p := NewMailboxPoller(activeSettings, runner, time.Hour, nil)

	require.True(t, p.Start())
	assert.False(t, p.Start(), "second start is a no-op")
	assert.True(t, p.IsRunning())

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not run")
	}

	p.Stop()
	assert.False(t, p.IsRunning())
	calls := runner.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, runner.count(), "no pass after Stop returns")

	p.Stop()
	require.True(t, p.Start(), "restart after stop")
	p.Stop()
}

func TestPollerTickDisabledUsesFallback(t *testing.T) {
	runner := &fakeRunner{}
	disabled := func(ctx context.Context) (config.MailboxConfig, error) {
		return config.MailboxConfig{Enabled: false, IntervalSeconds: 30}, nil
	}
	p := NewMailboxPoller(disabled, runner, 7*time.Second, nil)

	assert.Equal(t, 7*time.Second, p.tick(context.Background()))
	assert.Zero(t, runner.count())
}

func TestPollerTickUnreadableSettings(t *testing.T) {
	runner := &fakeRunner{}
	broken := func(ctx context.Context) (config.MailboxConfig, error) {
		return config.MailboxConfig{}, errors.New("db down")
	}
	p := NewMailboxPoller(broken, runner, 5*time.Second, nil)

	assert.Equal(t, 5*time.Second, p.tick(context.Background()))
	assert.Zero(t, runner.count())
}

func TestPollerTickSurvivesFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("imap login: denied")}
	p := NewMailboxPoller(activeSettings, runner, time.Second, nil)
	assert.Equal(t, time.Minute, p.tick(context.Background()))

	runner.err = nil
	runner.panicky = true
	assert.NotPanics(t, func() {
		assert.Equal(t, time.Minute, p.tick(context.Background()))
	})
	assert.Equal(t, 2, runner.count())
}

func TestPollerTickReadsSettingsEachTime(t *testing.T) {
	runner := &fakeRunner{}
	interval := 10
	source := func(ctx context.Context) (config.MailboxConfig, error) {
		return config.MailboxConfig{Enabled: true, IntervalSeconds: interval}, nil
	}
	p := NewMailboxPoller(source, runner, time.Second, nil)

	assert.Equal(t, 10*time.Second, p.tick(context.Background()))
	interval = 45
	assert.Equal(t, 45*time.Second, p.tick(context.Background()))
}
