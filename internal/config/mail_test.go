package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSecurity(t *testing.T) {
	cases := map[string]Security{
		"":         SecurityNone,
		"none":     SecurityNone,
		"TLS":      SecuritySTARTTLS,
		"starttls": SecuritySTARTTLS,
		"SSL":      SecuritySSL,
		" ssl ":    SecuritySSL,
	}
	for in, want := range cases {
		got, err := ParseSecurity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSecurity("quantum")
	require.Error(t, err)
}

func TestParseMailboxSettingsLegacyDocument(t *testing.T) {
	raw := []byte(`{"host":"imap.example.it","port":"993","username":"help@example.it","password":"pw","security":"SSL","auto_check":30}`)

	cfg, err := ParseMailboxSettings(raw)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Active())
	assert.Equal(t, 993, cfg.Port)
	assert.Equal(t, SecuritySSL, cfg.Security)
	assert.Equal(t, DefaultFolder, cfg.Folder)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, "imap.example.it:993", cfg.Addr())
}

func TestParseMailboxSettingsExplicitDisable(t *testing.T) {
	raw := []byte(`{"enabled":false,"host":"imap.example.it","username":"u","password":"p","security":"TLS","auto_check":60}`)

	cfg, err := ParseMailboxSettings(raw)
	require.NoError(t, err)
	assert.False(t, cfg.Active())
	assert.Equal(t, 143, cfg.Port)
}

func TestParseMailboxSettingsRejectsIncomplete(t *testing.T) {
	_, err := ParseMailboxSettings([]byte(`{"host":"","username":"u","password":"p"}`))
	require.ErrorContains(t, err, "host")

	_, err = ParseMailboxSettings([]byte(`not json`))
	require.Error(t, err)

	_, err = ParseMailboxSettings([]byte(`{"host":"h","username":"u","password":"p","port":"abc"}`))
	require.Error(t, err)
}

func TestMailboxSettingsRoundTrip(t *testing.T) {
	in := MailboxConfig{
		Enabled:         true,
		Host:            "imap.example.it",
		Port:            993,
		Username:        "u",
		Password:        "p",
		Security:        SecuritySSL,
		Folder:          "Support",
		IntervalSeconds: 45,
	}
	raw, err := EncodeMailboxSettings(in)
	require.NoError(t, err)

	out, err := ParseMailboxSettings(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseSMTPSettingsDefaults(t *testing.T) {
	cfg, err := ParseSMTPSettings([]byte(`{"host":"smtp.example.it","username":"crm@example.it","password":"pw","security":"TLS"}`))
	require.NoError(t, err)
	assert.Equal(t, 587, cfg.Port)
	assert.Equal(t, "crm@example.it", cfg.FromEmail)

	cfg, err = ParseSMTPSettings([]byte(`{"host":"smtp.example.it","port":465,"security":"SSL","from_email":"noreply@example.it","from_name":"CRM"}`))
	require.NoError(t, err)
	assert.Equal(t, 465, cfg.Port)
	assert.Equal(t, "CRM", cfg.FromName)

	_, err = ParseSMTPSettings([]byte(`{"port":25}`))
	require.Error(t, err)
}
