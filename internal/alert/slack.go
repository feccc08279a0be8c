package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"metricagent/internal/config"
	"metricagent/internal/rules"
)

var severityColors = map[string]string{
	"info":     "#0066cc",
	"warning":  "#ff9900",
	"critical": "#cc0000",
}

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

func NewSlackChannel(cfg config.SlackChannelConfig) *SlackChannel {
	username := cfg.Username
	if username == "" {
		username = "Metrics Agent"
	}
	iconEmoji := cfg.IconEmoji
	if iconEmoji == "" {
		iconEmoji = ":rotating_light:"
	}
	return &SlackChannel{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		username:   username,
		iconEmoji:  iconEmoji,
		client:     &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

func (c *SlackChannel) Send(rule *rules.Rule, value float64, labels map[string]string) error {
	msg := renderMessage(rule, value, labels)
	return c.post(c.payload(rule, value, labels, msg, false))
}

// SendResolved posts a green resolution message.
func (c *SlackChannel) SendResolved(rule *rules.Rule, value float64, labels map[string]string) error {
	msg := renderMessage(rule, value, labels)
	msg.Summary = "[RESOLVED] " + msg.Summary
	return c.post(c.payload(rule, value, labels, msg, true))
}

func (c *SlackChannel) payload(rule *rules.Rule, value float64, labels map[string]string, msg Message, resolved bool) map[string]interface{} {
	color := severityColors[rule.Severity]
	if color == "" {
		color = "#666666"
	}
	if resolved {
		color = "#2eb886"
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var labelsText strings.Builder
	for _, k := range keys {
		labelsText.WriteString(fmt.Sprintf("\n• *%s:* %s", k, labels[k]))
	}

	fields := []map[string]interface{}{
		{"title": "Severity", "value": strings.ToUpper(rule.Severity), "short": true},
		{"title": "Current Value", "value": fmt.Sprintf("%.2f", value), "short": true},
		{"title": "Threshold", "value": fmt.Sprintf("%s %g", rule.Operator, rule.Threshold), "short": true},
		{"title": "Metric", "value": rule.MetricName, "short": true},
	}

	attachment := map[string]interface{}{
		"color":  color,
		"title":  msg.Summary,
		"text":   msg.Description + labelsText.String(),
		"fields": fields,
		"footer": "Metrics Monitoring Agent",
		"ts":     time.Now().Unix(),
	}

	// Critical firings get a channel-wide call-out.
	text := ""
	if rule.Severity == "critical" && !resolved {
		text = "<!channel> Critical Alert"
	}

	payload := map[string]interface{}{
		"username":    c.username,
		"icon_emoji":  c.iconEmoji,
		"text":        text,
		"attachments": []interface{}{attachment},
	}
	if c.channel != "" {
		payload["channel"] = c.channel
	}
	return payload
}

func (c *SlackChannel) post(payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	resp, err := c.client.Post(c.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
