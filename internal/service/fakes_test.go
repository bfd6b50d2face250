package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/mailbox"
	"github.com/spec-kit/crm-helpdesk/internal/notify"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

type store struct {
	mu        sync.Mutex
	seq       int64
	tickets   map[int64]*domain.Ticket
	customers map[int64]*domain.Customer
	messages  []domain.TicketMessage
	history   []domain.TicketHistory
	agents    map[int64]*domain.Agent

	statusUpdates   int
	failStatus      error
	failMessage     error
	failTicketGet   error
	failCustomerGet error
	createDelay     time.Duration
}

func newStore() *store {
	return &store{
		tickets:   map[int64]*domain.Ticket{},
		customers: map[int64]*domain.Customer{},
		agents:    map[int64]*domain.Agent{},
	}
}

func (s *store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *store) messagesFor(ticketID int64) []domain.TicketMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TicketMessage
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out
}

type fakeTicketRepo struct{ s *store }

func (r fakeTicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	if r.s.createDelay > 0 {
		time.Sleep(r.s.createDelay)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	r.s.tickets[t.ID] = &cp
	return nil
}

func (r fakeTicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	r.s.tickets[t.ID] = &cp
	return nil
}

func (r fakeTicketRepo) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failStatus != nil {
		return r.s.failStatus
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	r.s.statusUpdates++
	return nil
}

func (r fakeTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTicketGet != nil {
		return nil, r.s.failTicketGet
	}
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTicketRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	return nil
}

type fakeMessageRepo struct{ s *store }

func (r fakeMessageRepo) Create(ctx context.Context, m *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMessage != nil {
		return r.s.failMessage
	}
	m.ID = r.s.nextID()
	m.CreatedAt = time.Now()
	r.s.messages = append(r.s.messages, *m)
	return nil
}

func (r fakeMessageRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	return r.s.messagesFor(ticketID), nil
}

func (r fakeMessageRepo) ExistsByEmailMessageID(ctx context.Context, ticketID int64, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	for _, m := range r.s.messagesFor(ticketID) {
		if m.EmailMessageID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeHistoryRepo struct{ s *store }

func (r fakeHistoryRepo) Create(ctx context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = r.s.nextID()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeCustomerRepo struct{ s *store }

func (r fakeCustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.customers {
		if existing.Email == c.Email {
			return errors.New("duplicate email")
		}
	}
	c.ID = r.s.nextID()
	cp := *c
	r.s.customers[c.ID] = &cp
	return nil
}

func (r fakeCustomerRepo) Update(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *c
	r.s.customers[c.ID] = &cp
	return nil
}

func (r fakeCustomerRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.customers, id)
	return nil
}

func (r fakeCustomerRepo) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r fakeCustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCustomerGet != nil {
		return nil, r.s.failCustomerGet
	}
	for _, c := range r.s.customers {
		if c.Email == strings.TrimSpace(email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r fakeCustomerRepo) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Customer
	for _, c := range r.s.customers {
		out = append(out, *c)
	}
	return out, nil
}

type fakeAgentRepo struct{ s *store }

func (r fakeAgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.nextID()
	cp := *a
	r.s.agents[a.ID] = &cp
	return nil
}

func (r fakeAgentRepo) Update(ctx context.Context, a *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	r.s.agents[a.ID] = &cp
	return nil
}

func (r fakeAgentRepo) GetByID(ctx context.Context, id int64) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (r fakeAgentRepo) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.agents {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r fakeAgentRepo) GetByFullName(ctx context.Context, name string) (*domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.agents {
		if a.FullName == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r fakeAgentRepo) List(ctx context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Agent
	for _, a := range r.s.agents {
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	err     error
}

func (n *fakeNotifier) NotifyNewTicket(ctx context.Context, ticket *domain.Ticket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tickets = append(n.tickets, *ticket)
	return n.err
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tickets)
}

type fakeSession struct {
	mu       sync.Mutex
	order    []uint32
	messages map[uint32]*domain.InboxMessage
	broken   map[uint32]bool
	seen     []uint32
	closed   bool
}

func (s *fakeSession) Unseen(ctx context.Context) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[uint32]bool{}
	for _, uid := range s.seen {
		seen[uid] = true
	}
	var out []uint32
	for _, uid := range s.order {
		if !seen[uid] {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (s *fakeSession) Fetch(ctx context.Context, uid uint32) (*domain.InboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken[uid] {
		return nil, &mailbox.ParseError{UID: uid, Err: errors.New("malformed MIME")}
	}
	msg := *s.messages[uid]
	msg.UID = uid
	return &msg, nil
}

func (s *fakeSession) MarkSeen(ctx context.Context, uid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, uid)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) add(msg domain.InboxMessage) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages == nil {
		s.messages = map[uint32]*domain.InboxMessage{}
	}
	uid := uint32(len(s.order) + 1)
	s.order = append(s.order, uid)
	s.messages[uid] = &msg
	return uid
}

type fakeDialer struct {
	session *fakeSession
	err     error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, cfg config.MailboxConfig) (mailbox.Session, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func (d *fakeDialer) Test(ctx context.Context, cfg config.MailboxConfig) error {
	return d.err
}

type fakeSender struct {
	mu          sync.Mutex
	sent        []notify.Email
	err         error
	hadDeadline bool
}

func (s *fakeSender) Send(ctx context.Context, cfg config.SMTPConfig, e notify.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, s.hadDeadline = ctx.Deadline()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, e)
	return nil
}

func (s *fakeSender) TestConnection(ctx context.Context, cfg config.SMTPConfig) error {
	return s.err
}

type fakeSettings struct {
	smtp      config.SMTPConfig
	templates map[domain.TemplateType]domain.EmailTemplate
}

func (f fakeSettings) SMTP(ctx context.Context) (config.SMTPConfig, error) {
	return f.smtp, nil
}

func (f fakeSettings) Template(ctx context.Context, t domain.TemplateType) (domain.EmailTemplate, error) {
	if tpl, ok := f.templates[t]; ok {
		return tpl, nil
	}
	tpl, _ := notify.DefaultTemplate(t)
	return tpl, nil
}

type fakeSettingsRepo struct {
	docs map[string][]byte
}

func (r *fakeSettingsRepo) Get(ctx context.Context, settingsType string) ([]byte, error) {
	raw, ok := r.docs[settingsType]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return raw, nil
}

func (r *fakeSettingsRepo) Save(ctx context.Context, settingsType string, raw []byte) error {
	if r.docs == nil {
		r.docs = map[string][]byte{}
	}
	r.docs[settingsType] = raw
	return nil
}

type fakeTemplateRepo struct {
	items map[domain.TemplateType]domain.EmailTemplate
}

func (r *fakeTemplateRepo) Get(ctx context.Context, t domain.TemplateType) (*domain.EmailTemplate, error) {
	tpl, ok := r.items[t]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tpl, nil
}

func (r *fakeTemplateRepo) List(ctx context.Context) ([]domain.EmailTemplate, error) {
	var out []domain.EmailTemplate
	for _, tpl := range r.items {
		out = append(out, tpl)
	}
	return out, nil
}

func (r *fakeTemplateRepo) Upsert(ctx context.Context, tpl *domain.EmailTemplate) error {
	if r.items == nil {
		r.items = map[domain.TemplateType]domain.EmailTemplate{}
	}
	r.items[tpl.Type] = *tpl
	return nil
}
