// Package mailbox reads the support inbox over IMAP and turns raw messages
// into domain.InboxMessage values.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// Session is one authenticated connection with a folder selected.
type Session interface {
	Unseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*domain.InboxMessage, error)
	MarkSeen(ctx context.Context, uid uint32) error
	Close() error
}

// Dialer opens sessions against a configured mailbox.
type Dialer interface {
	Dial(ctx context.Context, cfg config.MailboxConfig) (Session, error)
	Test(ctx context.Context, cfg config.MailboxConfig) error
}

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}

// IMAPDialer connects with go-imap using the configured transport security.
type IMAPDialer struct {
	dialTimeout  time.Duration
	maxBodyBytes int64
	now          func() time.Time
	logger       *zap.Logger
	newClient    func(cfg config.MailboxConfig) (imapClient, error)
}

// Option customizes an IMAPDialer.
type Option func(*IMAPDialer)

// WithDialTimeout overrides the socket dial timeout.
func WithDialTimeout(timeout time.Duration) Option {
	return func(d *IMAPDialer) {
		if timeout > 0 {
			d.dialTimeout = timeout
		}
	}
}

// WithMaxBodyBytes caps how much of each body part is read.
func WithMaxBodyBytes(limit int64) Option {
	return func(d *IMAPDialer) {
		if limit > 0 {
			d.maxBodyBytes = limit
		}
	}
}

// WithClock overrides the wall clock used for messages without a date.
func WithClock(now func() time.Time) Option {
	return func(d *IMAPDialer) {
		if now != nil {
			d.now = now
		}
	}
}

func withClientFactory(factory func(config.MailboxConfig) (imapClient, error)) Option {
	return func(d *IMAPDialer) {
		d.newClient = factory
	}
}

// NewIMAPDialer constructs a dialer.
func NewIMAPDialer(logger *zap.Logger, opts ...Option) *IMAPDialer {
	d := &IMAPDialer{
		dialTimeout:  10 * time.Second,
		maxBodyBytes: defaultBodyLimit,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger.Named("mailbox"),
	}
	d.newClient = d.defaultClientFactory
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects, authenticates and selects the configured folder.
func (d *IMAPDialer) Dial(ctx context.Context, cfg config.MailboxConfig) (Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectionError{Op: "config", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Op: "connect", Err: err}
	}

	client, err := d.newClient(cfg)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Err: err}
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })

	s := &imapSession{client: client, stop: stop, dialer: d, folder: cfg.Folder}
	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		s.abort()
		return nil, &ConnectionError{Op: "login", Err: err}
	}
	if _, err := client.Select(cfg.Folder, nil).Wait(); err != nil {
		s.abort()
		return nil, &ConnectionError{Op: "select " + cfg.Folder, Err: err}
	}
	// Cancellation only guards connection setup. Once selected, the session
	// lives until Close so a running pass can finish its current message.
	s.stop = nil
	if !stop() {
		_ = client.Close()
		return nil, &ConnectionError{Op: "connect", Err: context.Cause(ctx)}
	}
	return s, nil
}

// Test opens a session and logs out again.
func (d *IMAPDialer) Test(ctx context.Context, cfg config.MailboxConfig) error {
	s, err := d.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Close()
}

func (d *IMAPDialer) defaultClientFactory(cfg config.MailboxConfig) (imapClient, error) {
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: d.dialTimeout}}
	var (
		client *imapclient.Client
		err    error
	)
	switch cfg.Security {
	case config.SecuritySSL:
		client, err = imapclient.DialTLS(cfg.Addr(), opts)
	case config.SecuritySTARTTLS:
		client, err = imapclient.DialStartTLS(cfg.Addr(), opts)
	default:
		client, err = imapclient.DialInsecure(cfg.Addr(), opts)
	}
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapSession struct {
	client imapClient
	stop   func() bool
	dialer *IMAPDialer
	folder string
}

// Unseen lists unseen UIDs in ascending order.
func (s *imapSession) Unseen(ctx context.Context) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Op: "search", Err: err}
	}
	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &ConnectionError{Op: "search", Err: err}
	}
	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// Fetch downloads one message without setting \Seen and parses it.
func (s *imapSession) Fetch(ctx context.Context, uid uint32) (*domain.InboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	section := &imap.FetchItemBodySection{Peek: true}
	opts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}
	bufs, err := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), opts).Collect()
	if err != nil {
		return nil, &ParseError{UID: uid, Err: fmt.Errorf("fetch: %w", err)}
	}
	if len(bufs) == 0 {
		return nil, &ParseError{UID: uid, Err: errors.New("message vanished")}
	}
	buf := bufs[0]
	raw := buf.FindBodySection(section)
	if raw == nil && len(buf.BodySection) > 0 {
		raw = buf.BodySection[0].Bytes
	}

	received := buf.InternalDate
	if received.IsZero() {
		received = s.dialer.now()
	}
	msg, err := Parse(raw, s.dialer.maxBodyBytes)
	if err != nil {
		return nil, &ParseError{UID: uid, Err: err}
	}
	msg.UID = uid
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = received
	}
	return msg, nil
}

// MarkSeen adds the \Seen flag to uid.
func (s *imapSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: []imap.Flag{imap.FlagSeen}}
	if err := s.client.Store(imap.UIDSetNum(imap.UID(uid)), store, nil).Close(); err != nil {
		return fmt.Errorf("imap store seen uid %d: %w", uid, err)
	}
	return nil
}

// Close logs out and releases the connection.
func (s *imapSession) Close() error {
	defer s.abort()
	if err := s.client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

func (s *imapSession) abort() {
	if s.stop != nil {
		s.stop()
	}
	if err := s.client.Close(); err != nil {
		s.dialer.logger.Debug("imap close", zap.Error(err))
	}
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) Store(numSet imap.NumSet, store *imap.StoreFlags, options *imap.StoreOptions) fetchWaiter {
	return w.Client.Store(numSet, store, options)
}
