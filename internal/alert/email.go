package alert

import (
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"metricagent/internal/config"
	"metricagent/internal/rules"
)

// EmailChannel delivers alerts through an outbound SMTP relay.
type EmailChannel struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	to       []string
}

func NewEmailChannel(cfg config.EmailChannelConfig) *EmailChannel {
	return &EmailChannel{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
	}
}

func (c *EmailChannel) Send(rule *rules.Rule, value float64, labels map[string]string) error {
	msg := renderMessage(rule, value, labels)

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(rule.Severity), msg.Summary)

	var body strings.Builder
	body.WriteString(msg.Description)
	body.WriteString("\n\n")
	body.WriteString(fmt.Sprintf("Metric: %s\n", rule.MetricName))
	body.WriteString(fmt.Sprintf("Current value: %.2f\n", value))
	body.WriteString(fmt.Sprintf("Threshold: %s %g\n", rule.Operator, rule.Threshold))
	if len(labels) > 0 {
		body.WriteString("\nLabels:\n")
		keys := make([]string, 0, len(labels))
		for k := range labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			body.WriteString(fmt.Sprintf("  %s: %s\n", k, labels[k]))
		}
	}

	addr := fmt.Sprintf("%s:%d", c.smtpHost, c.smtpPort)
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		c.from, strings.Join(c.to, ", "), subject, body.String())

	var auth smtp.Auth
	if c.username != "" {
		auth = smtp.PlainAuth("", c.username, c.password, c.smtpHost)
	}
	if err := smtp.SendMail(addr, auth, c.from, c.to, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email notification: %w", err)
	}
	return nil
}
