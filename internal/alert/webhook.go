package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"metricagent/internal/config"
	"metricagent/internal/rules"
)

// WebhookChannel delivers alerts as structured JSON to a configured URL.
type WebhookChannel struct {
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

func NewWebhookChannel(cfg config.WebhookChannelConfig) *WebhookChannel {
	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &WebhookChannel{
		url:     cfg.URL,
		method:  strings.ToUpper(cfg.Method),
		headers: headers,
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

func (c *WebhookChannel) Send(rule *rules.Rule, value float64, labels map[string]string) error {
	return c.deliver(rule, value, labels, "firing")
}

// SendResolved delivers the same payload shape with resolved status.
func (c *WebhookChannel) SendResolved(rule *rules.Rule, value float64, labels map[string]string) error {
	return c.deliver(rule, value, labels, "resolved")
}

func (c *WebhookChannel) deliver(rule *rules.Rule, value float64, labels map[string]string, status string) error {
	// Fail unsupported methods before issuing any request.
	if c.method != http.MethodPost && c.method != http.MethodPut {
		return fmt.Errorf("unsupported HTTP method: %s", c.method)
	}

	msg := renderMessage(rule, value, labels)
	payload := map[string]interface{}{
		"alert": map[string]interface{}{
			"name":      rule.Name,
			"severity":  rule.Severity,
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		},
		"metric": map[string]interface{}{
			"name":      rule.MetricName,
			"value":     value,
			"threshold": rule.Threshold,
			"operator":  rule.Operator,
		},
		"labels": labels,
		"annotations": map[string]string{
			"summary":     msg.Summary,
			"description": msg.Description,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequest(c.method, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
