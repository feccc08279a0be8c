package alert

import (
	"fmt"
	"strings"

	"metricagent/internal/config"
	"metricagent/internal/rules"

	"go.uber.org/zap"
)

// Channel delivers a formatted message for one alert firing. A non-nil
// error marks the delivery as failed; the manager logs it and moves on.
type Channel interface {
	Send(rule *rules.Rule, value float64, labels map[string]string) error
}

// ResolvedSender is optionally implemented by channels that can also
// announce a resolution.
type ResolvedSender interface {
	SendResolved(rule *rules.Rule, value float64, labels map[string]string) error
}

// Message is the rendered notification content shared by all channels.
type Message struct {
	Summary     string
	Description string
}

// renderMessage builds the message from the rule's annotation templates,
// falling back to generated defaults when annotations are absent.
func renderMessage(rule *rules.Rule, value float64, labels map[string]string) Message {
	summary := rule.Annotations["summary"]
	if summary == "" {
		summary = fmt.Sprintf("Alert: %s", rule.Name)
	}
	description := rule.Annotations["description"]
	if description == "" {
		description = fmt.Sprintf("%s %s %g", rule.MetricName, rule.Operator, rule.Threshold)
	}

	return Message{
		Summary:     substituteTemplate(summary, value, rule.Threshold, labels),
		Description: substituteTemplate(description, value, rule.Threshold, labels),
	}
}

// substituteTemplate replaces {{ value }}, {{ threshold }} and
// {{ labels.<key> }} placeholders by literal string replacement. There
// is no escaping and no recursive expansion: a label value containing
// template-like text is substituted verbatim and may collide with later
// placeholders. Kept literal for compatibility with existing templates.
func substituteTemplate(template string, value, threshold float64, labels map[string]string) string {
	result := strings.ReplaceAll(template, "{{ value }}", fmt.Sprintf("%.2f", value))
	result = strings.ReplaceAll(result, "{{ threshold }}", fmt.Sprintf("%.2f", threshold))
	for k, v := range labels {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{ labels.%s }}", k), v)
	}
	return result
}

// BuildChannels constructs every enabled channel from configuration.
// A channel that fails to initialize is logged and omitted; the rest
// stay usable.
func BuildChannels(cfg config.ChannelsConfig, log *zap.Logger) map[string]Channel {
	channels := make(map[string]Channel)

	if cfg.Slack.Enabled {
		channels["slack"] = NewSlackChannel(cfg.Slack)
		log.Info("slack channel initialized", zap.String("channel", cfg.Slack.Channel))
	}
	if cfg.Webhook.Enabled {
		channels["webhook"] = NewWebhookChannel(cfg.Webhook)
		log.Info("webhook channel initialized", zap.String("url", cfg.Webhook.URL))
	}
	if cfg.Email.Enabled {
		channels["email"] = NewEmailChannel(cfg.Email)
		log.Info("email channel initialized", zap.String("smtp_host", cfg.Email.SMTPHost))
	}
	if cfg.Elasticsearch.Enabled {
		es, err := NewESChannel(cfg.Elasticsearch)
		if err != nil {
			log.Error("failed to initialize elasticsearch channel", zap.Error(err))
		} else {
			channels["elasticsearch"] = es
			log.Info("elasticsearch channel initialized",
				zap.Strings("addresses", cfg.Elasticsearch.Addresses),
			)
		}
	}

	return channels
}
