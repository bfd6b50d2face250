package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
)

func newSettingsFixture() (*SettingsService, *fakeSettingsRepo, *fakeTemplateRepo) {
	settings := &fakeSettingsRepo{}
	templates := &fakeTemplateRepo{}
	svc := NewSettingsService(SettingsDependencies{
		SettingsRepo:    settings,
		TemplateRepo:    templates,
		MailboxDefaults: config.MailboxConfig{Enabled: false, IntervalSeconds: 60, Security: config.SecuritySSL},
		SMTPDefaults:    config.SMTPConfig{FromEmail: "noreply@example.com"},
	})
	return svc, settings, templates
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	svc, _, _ := newSettingsFixture()

	mb, err := svc.Mailbox(context.Background())
	require.NoError(t, err)
	assert.False(t, mb.Active())
	assert.Equal(t, config.DefaultFolder, mb.Folder)
	assert.Equal(t, 993, mb.Port)

	smtp, err := svc.SMTP(context.Background())
	require.NoError(t, err)
	assert.False(t, smtp.Configured())
}

func TestSettingsReadLegacyDocument(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	repo.docs = map[string][]byte{
		repository.SettingsIMAP: []byte(`{"host":"imap.example.it","port":"993","username":"u","password":"p","security":"SSL","auto_check":30}`),
	}

	mb, err := svc.Mailbox(context.Background())
	require.NoError(t, err)
	assert.True(t, mb.Active())
	assert.Equal(t, 30, mb.IntervalSeconds)
}

func TestSaveMailboxKeepsStoredPassword(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	ctx := context.Background()

	_, err := svc.SaveMailbox(ctx, config.MailboxConfig{
		Enabled: true, Host: "imap.example.it", Username: "u", Password: "segreto", Security: config.SecuritySSL, IntervalSeconds: 60,
	})
	require.NoError(t, err)

	saved, err := svc.SaveMailbox(ctx, config.MailboxConfig{
		Enabled: true, Host: "imap.example.it", Username: "u", Security: config.SecuritySSL, IntervalSeconds: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, "segreto", saved.Password)

	loaded, err := svc.Mailbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, "segreto", loaded.Password)
	assert.Equal(t, 120, loaded.IntervalSeconds)

	_, err = svc.SaveMailbox(ctx, config.MailboxConfig{Username: "u", Password: "p"})
	require.Error(t, err)
}

func TestSaveSMTP(t *testing.T) {
	svc, _, _ := newSettingsFixture()

	saved, err := svc.SaveSMTP(context.Background(), config.SMTPConfig{
		Host: " smtp.example.it ", Username: "crm@example.it", Password: "pw", Security: config.SecuritySTARTTLS,
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.it", saved.Host)
	assert.Equal(t, 587, saved.Port)
	assert.Equal(t, "crm@example.it", saved.FromEmail)

	loaded, err := svc.SMTP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestTemplatesOverride(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	ctx := context.Background()

	tpl, err := svc.Template(ctx, domain.TemplateNewTicket)
	require.NoError(t, err)
	assert.Equal(t, "Nuovo Ticket #{ticket_id} - {ticket_title}", tpl.Subject)

	require.NoError(t, svc.SaveTemplate(ctx, domain.EmailTemplate{Type: domain.TemplateNewTicket, Subject: "Ticket #{ticket_id}", Body: "Ciao {customer_name}"}))
	tpl, err = svc.Template(ctx, domain.TemplateNewTicket)
	require.NoError(t, err)
	assert.Equal(t, "Ticket #{ticket_id}", tpl.Subject)

	all, err := svc.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ticket #{ticket_id}", all[0].Subject)
	assert.Equal(t, domain.TemplateUpdateTicket, all[1].Type)

	require.Error(t, svc.SaveTemplate(ctx, domain.EmailTemplate{Type: "other", Subject: "s", Body: "b"}))
	require.Error(t, svc.SaveTemplate(ctx, domain.EmailTemplate{Type: domain.TemplateUpdateTicket}))
}
