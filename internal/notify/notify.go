// Package notify sends operator email notifications: tier-3 listing expiry
// and repeated-failure alerts on tier-3 sites, delivered over a plain SMTP
// relay.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the outbound SMTP relay used for admin notifications.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AdminTo  string
}

// Notifier sends admin notification emails over SMTP.
type Notifier struct {
	cfg    Config
	logger *zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New builds a Notifier for cfg. An empty cfg.Host disables sending: notice
// calls become a logged no-op, mirroring the Solr client's Enabled() pattern
// so the rest of the pipeline does not need a feature flag.
func New(cfg Config, logger *zerolog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Enabled reports whether an SMTP relay is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Host != ""
}

var tierExpiryTemplate = template.Must(template.New("tier-expiry").Parse(
	`Domain {{.Domain}} has expired out of tier 3 listing as of {{.OccurredAt}}.
The listing has been demoted and the registry entry's indexing defaults reset accordingly.
`))

var repeatedFailureTemplate = template.Must(template.New("repeated-failure").Parse(
	`Domain {{.Domain}} (tier 3) failed to index any documents on two consecutive full reindex attempts as of {{.OccurredAt}}.
Indexing has been disabled for this domain. Reason: {{.Reason}}
`))

// TierExpiryNotice reports that a tier-3 domain's listing has expired and
// been demoted.
func (n *Notifier) TierExpiryNotice(ctx context.Context, domain string) error {
	return n.sendTemplate(ctx, tierExpiryTemplate, fmt.Sprintf("Listing expired: %s", domain), struct {
		Domain     string
		OccurredAt time.Time
	}{domain, time.Now().UTC()})
}

// RepeatedFailureNotice reports that a tier-3 domain has been disabled after
// two consecutive zero-document full reindex attempts.
func (n *Notifier) RepeatedFailureNotice(ctx context.Context, domain, reason string) error {
	return n.sendTemplate(ctx, repeatedFailureTemplate, fmt.Sprintf("Indexing disabled: %s", domain), struct {
		Domain     string
		Reason     string
		OccurredAt time.Time
	}{domain, reason, time.Now().UTC()})
}

func (n *Notifier) sendTemplate(ctx context.Context, tmpl *template.Template, subject string, data interface{}) error {
	if !n.Enabled() {
		n.logger.Warn().Str("subject", subject).Msg("notify: smtp not configured, skipping")
		return nil
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render notification %q: %w", subject, err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", n.cfg.From, n.cfg.AdminTo, subject, body.String())

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := n.send(addr, auth, n.cfg.From, []string{n.cfg.AdminTo}, []byte(msg)); err != nil {
		return fmt.Errorf("send notification %q: %w", subject, err)
	}

	n.logger.Info().Str("subject", subject).Msg("notify: sent admin notification")

	return nil
}
