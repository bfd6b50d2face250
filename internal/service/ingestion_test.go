package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/mailbox"
	"github.com/spec-kit/crm-helpdesk/internal/observability"
)

var testMailbox = config.MailboxConfig{
	Enabled:         true,
	Host:            "imap.example.it",
	Port:            993,
	Username:        "help@example.it",
	Password:        "pw",
	Security:        config.SecuritySSL,
	Folder:          "INBOX",
	IntervalSeconds: 60,
}

func TestRunPassIsolatesMalformedMessage(t *testing.T) {
	f := newReconcilerFixture()
	session := &fakeSession{broken: map[uint32]bool{}}
	for i, subject := range []string{"Uno", "Due", "Tre", "Quattro", "Cinque"} {
		uid := session.add(*inbox(subject, "testo", ""))
		if i == 2 {
			session.broken[uid] = true
		}
	}
	reg := prometheus.NewRegistry()
	svc := NewIngestionService(IngestionDependencies{
		Dialer:     &fakeDialer{session: session},
		Reconciler: f.reconciler,
		Metrics:    observability.NewMetrics(reg),
	})

	report, err := svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)

	assert.Equal(t, PassReport{Fetched: 5, Created: 4, Failed: 1}, report)
	assert.Equal(t, []uint32{1, 2, 4, 5}, session.seen)
	assert.True(t, session.closed)
	assert.Len(t, f.store.tickets, 4)

	unseen, err := session.Unseen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, unseen, "malformed message stays eligible for retry")

	expected := `
# HELP helpdesk_ingest_messages_total Inbound messages by reconciliation outcome.
# TYPE helpdesk_ingest_messages_total counter
helpdesk_ingest_messages_total{outcome="created"} 4
helpdesk_ingest_messages_total{outcome="failed"} 1
# HELP helpdesk_ingest_passes_total Mailbox ingestion passes by result.
# TYPE helpdesk_ingest_passes_total counter
helpdesk_ingest_passes_total{result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"helpdesk_ingest_messages_total", "helpdesk_ingest_passes_total"))
}

func TestRunPassMixedOutcomes(t *testing.T) {
	f := newReconcilerFixture()
	f.seedTicket(7, domain.TicketStatusResolved)
	session := &fakeSession{}
	session.add(*inbox("Re: Ticket #7", "riaperto", "<1@x.it>"))
	session.add(*inbox("Re: Ticket #7", "riaperto", "<1@x.it>"))
	session.add(*inbox("Nuova richiesta", "aiuto", "<2@x.it>"))

	svc := NewIngestionService(IngestionDependencies{
		Dialer:     &fakeDialer{session: session},
		Reconciler: f.reconciler,
	})
	report, err := svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)
	assert.Equal(t, PassReport{Fetched: 3, Created: 1, Appended: 1, Duplicates: 1, Reopened: 1}, report)
	assert.Len(t, session.seen, 3)
}

func TestRunPassConnectionFailureAborts(t *testing.T) {
	f := newReconcilerFixture()
	dialer := &fakeDialer{err: &mailbox.ConnectionError{Op: "login", Err: errors.New("bad credentials")}}
	svc := NewIngestionService(IngestionDependencies{Dialer: dialer, Reconciler: f.reconciler})

	_, err := svc.RunPass(context.Background(), testMailbox)
	var connErr *mailbox.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "login", connErr.Op)
	assert.Empty(t, f.store.tickets)
}

func TestRunPassReconcileFailureLeavesUnseen(t *testing.T) {
	f := newReconcilerFixture()
	f.store.failCustomerGet = errors.New("db timeout")
	session := &fakeSession{}
	session.add(*inbox("Nuova", "aiuto", ""))

	svc := NewIngestionService(IngestionDependencies{Dialer: &fakeDialer{session: session}, Reconciler: f.reconciler})
	report, err := svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, session.seen)
}

type blockingReconciler struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	release chan struct{}
	entered chan struct{}
}

func (b *blockingReconciler) Reconcile(ctx context.Context, msg *domain.InboxMessage, ack Acknowledger) (Reconciliation, error) {
	n := b.active.Add(1)
	for {
		peak := b.maxSeen.Load()
		if n <= peak || b.maxSeen.CompareAndSwap(peak, n) {
			break
		}
	}
	b.entered <- struct{}{}
	<-b.release
	b.active.Add(-1)
	return Reconciliation{Outcome: OutcomeCreated}, ack(ctx)
}

type sessionDialer struct{}

func (sessionDialer) Dial(ctx context.Context, cfg config.MailboxConfig) (mailbox.Session, error) {
	s := &fakeSession{}
	s.add(*inbox("x", "y", ""))
	return s, nil
}

func (sessionDialer) Test(ctx context.Context, cfg config.MailboxConfig) error { return nil }

func TestRunPassMutualExclusion(t *testing.T) {
	rec := &blockingReconciler{release: make(chan struct{}), entered: make(chan struct{}, 2)}
	svc := NewIngestionService(IngestionDependencies{Dialer: sessionDialer{}, Reconciler: rec})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RunPass(context.Background(), testMailbox)
			assert.NoError(t, err)
		}()
	}

	<-rec.entered
	select {
	case <-rec.entered:
		t.Fatal("second pass started while the first was running")
	case <-time.After(50 * time.Millisecond):
	}
	rec.release <- struct{}{}
	<-rec.entered
	rec.release <- struct{}{}
	wg.Wait()

	assert.Equal(t, int32(1), rec.maxSeen.Load())
}

func TestRunPassWaitRespectsContext(t *testing.T) {
	rec := &blockingReconciler{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewIngestionService(IngestionDependencies{Dialer: sessionDialer{}, Reconciler: rec})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.RunPass(context.Background(), testMailbox)
	}()
	<-rec.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.RunPass(ctx, testMailbox)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	rec.release <- struct{}{}
	<-done
}

type heldLock struct{}

func (l *heldLock) Acquire(ctx context.Context) (func(context.Context), error) {
	return nil, ErrPassInProgress
}

type freeLock struct{ released int }

func (l *freeLock) Acquire(ctx context.Context) (func(context.Context), error) {
	return func(context.Context) { l.released++ }, nil
}

func TestRunPassHonoursDistributedLock(t *testing.T) {
	f := newReconcilerFixture()
	dialer := &fakeDialer{session: &fakeSession{}}
	reg := prometheus.NewRegistry()
	svc := NewIngestionService(IngestionDependencies{
		Dialer:     dialer,
		Reconciler: f.reconciler,
		Lock:       &heldLock{},
		Metrics:    observability.NewMetrics(reg),
	})

	_, err := svc.RunPass(context.Background(), testMailbox)
	require.ErrorIs(t, err, ErrPassInProgress)
	assert.Zero(t, dialer.dials)

	lock := &freeLock{}
	svc = NewIngestionService(IngestionDependencies{Dialer: dialer, Reconciler: f.reconciler, Lock: lock})
	_, err = svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)
	assert.Equal(t, 1, dialer.dials)
	assert.Equal(t, 1, lock.released)
}

func TestCheckNowRequiresCredentials(t *testing.T) {
	svc := NewIngestionService(IngestionDependencies{Dialer: &fakeDialer{}, Reconciler: newReconcilerFixture().reconciler})
	_, err := svc.CheckNow(context.Background(), config.MailboxConfig{})
	require.ErrorIs(t, err, ErrMailboxNotConfigured)
}

type brokenLock struct{ err error }

func (l *brokenLock) Acquire(ctx context.Context) (func(context.Context), error) {
	return nil, l.err
}

func TestRunPassContinuesWhenLockBackendDown(t *testing.T) {
	f := newReconcilerFixture()
	session := &fakeSession{}
	session.add(*inbox("Nuova richiesta", "aiuto", "<3@x.it>"))
	svc := NewIngestionService(IngestionDependencies{
		Dialer:     &fakeDialer{session: session},
		Reconciler: f.reconciler,
		Lock:       &brokenLock{err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")},
	})

	report, err := svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, []uint32{1}, session.seen)
}

func TestCheckNowSurvivesRequestDeadline(t *testing.T) {
	f := newReconcilerFixture()
	f.store.createDelay = 80 * time.Millisecond
	session := &fakeSession{}
	session.add(*inbox("Nuova richiesta", "aiuto", "<9@x.it>"))
	svc := NewIngestionService(IngestionDependencies{
		Dialer:     &fakeDialer{session: session},
		Reconciler: f.reconciler,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	report, err := svc.CheckNow(ctx, testMailbox)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, []uint32{1}, session.seen)

	f.store.createDelay = 0
	report, err = svc.RunPass(context.Background(), testMailbox)
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
	assert.Len(t, f.store.tickets, 1)
}

func TestCheckNowGivesUpWaitingWithRequest(t *testing.T) {
	rec := &blockingReconciler{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewIngestionService(IngestionDependencies{Dialer: sessionDialer{}, Reconciler: rec})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.RunPass(context.Background(), testMailbox)
	}()
	<-rec.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.CheckNow(ctx, testMailbox)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	rec.release <- struct{}{}
	<-done
}
