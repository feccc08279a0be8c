package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"metricagent/internal/config"
	"metricagent/internal/rules"

	"go.uber.org/zap"
)

func TestSubstituteTemplate(t *testing.T) {
	labels := map[string]string{"mount_point": "/", "host": "web1"}
	got := substituteTemplate(
		"{{ labels.mount_point }} on {{ labels.host }} at {{ value }}% (limit {{ threshold }})",
		93.456, 90, labels,
	)
	want := "/ on web1 at 93.46% (limit 90.00)"
	if got != want {
		t.Errorf("substituteTemplate = %q, want %q", got, want)
	}
}

func TestSubstituteTemplateUnknownLabelLeftVerbatim(t *testing.T) {
	got := substituteTemplate("usage on {{ labels.missing }}", 1, 2, nil)
	if got != "usage on {{ labels.missing }}" {
		t.Errorf("unknown placeholder should stay verbatim, got %q", got)
	}
}

func TestRenderMessageDefaults(t *testing.T) {
	rule := testRule(t, func(r *rules.Rule) { r.Annotations = nil })
	msg := renderMessage(rule, 95, nil)

	if msg.Summary != "Alert: cpu_high" {
		t.Errorf("default summary = %q", msg.Summary)
	}
	if msg.Description != "cpu_usage_percent > 90" {
		t.Errorf("default description = %q", msg.Description)
	}
}

func TestRenderMessageAnnotations(t *testing.T) {
	rule := testRule(t, func(r *rules.Rule) {
		r.Annotations = map[string]string{
			"summary":     "CPU at {{ value }}%",
			"description": "threshold is {{ threshold }}",
		}
	})
	msg := renderMessage(rule, 95.5, nil)

	if msg.Summary != "CPU at 95.50%" {
		t.Errorf("summary = %q", msg.Summary)
	}
	if msg.Description != "threshold is 90.00" {
		t.Errorf("description = %q", msg.Description)
	}
}

func TestSlackChannelSend(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	channel := NewSlackChannel(config.SlackChannelConfig{
		WebhookURL: srv.URL,
		Channel:    "#alerts",
		Timeout:    5,
	})
	rule := testRule(t, nil)

	if err := channel.Send(rule, 95, map[string]string{"host": "web1"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	if received["channel"] != "#alerts" {
		t.Errorf("channel = %v, want #alerts", received["channel"])
	}
	// Critical firings carry the channel-wide mention.
	if text, _ := received["text"].(string); !strings.Contains(text, "<!channel>") {
		t.Errorf("critical alert text = %q, want channel mention", text)
	}
	attachments, _ := received["attachments"].([]interface{})
	if len(attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(attachments))
	}
	attachment := attachments[0].(map[string]interface{})
	if attachment["color"] != "#cc0000" {
		t.Errorf("critical color = %v, want #cc0000", attachment["color"])
	}
}

func TestSlackChannelLabelOrderStable(t *testing.T) {
	channel := NewSlackChannel(config.SlackChannelConfig{WebhookURL: "http://example.invalid", Timeout: 5})
	rule := testRule(t, nil)
	labels := map[string]string{"zone": "eu", "core": "0", "host": "web1"}
	msg := renderMessage(rule, 95, labels)

	first := channel.payload(rule, 95, labels, msg, false)
	second := channel.payload(rule, 95, labels, msg, false)

	text := func(p map[string]interface{}) string {
		attachment := p["attachments"].([]interface{})[0].(map[string]interface{})
		return attachment["text"].(string)
	}
	if text(first) != text(second) {
		t.Fatalf("label rendering differs between sends:\n%q\n%q", text(first), text(second))
	}

	core := strings.Index(text(first), "*core:*")
	host := strings.Index(text(first), "*host:*")
	zone := strings.Index(text(first), "*zone:*")
	if core < 0 || host < 0 || zone < 0 || !(core < host && host < zone) {
		t.Fatalf("labels not rendered in sorted key order: %q", text(first))
	}
}

func TestSlackChannelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	channel := NewSlackChannel(config.SlackChannelConfig{WebhookURL: srv.URL, Timeout: 5})
	if err := channel.Send(testRule(t, nil), 95, nil); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestWebhookChannelSend(t *testing.T) {
	var gotMethod, gotAuth string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	channel := NewWebhookChannel(config.WebhookChannelConfig{
		URL:     srv.URL,
		Method:  "put",
		Headers: map[string]string{"Authorization": "Bearer token"},
		Timeout: 5,
	})
	rule := testRule(t, nil)

	if err := channel.Send(rule, 95, map[string]string{"core": "0"}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	alertPart, _ := payload["alert"].(map[string]interface{})
	if alertPart["status"] != "firing" {
		t.Errorf("status = %v, want firing", alertPart["status"])
	}
	metricPart, _ := payload["metric"].(map[string]interface{})
	if metricPart["value"] != 95.0 {
		t.Errorf("value = %v, want 95", metricPart["value"])
	}
}

func TestWebhookChannelUnsupportedMethod(t *testing.T) {
	requested := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer srv.Close()

	channel := NewWebhookChannel(config.WebhookChannelConfig{
		URL:     srv.URL,
		Method:  "DELETE",
		Timeout: 5,
	})
	if err := channel.Send(testRule(t, nil), 95, nil); err == nil {
		t.Fatal("expected error for unsupported method")
	}
	if requested {
		t.Fatal("no request should be issued for an unsupported method")
	}
}

func TestWebhookChannelResolvedStatus(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
	}))
	defer srv.Close()

	channel := NewWebhookChannel(config.WebhookChannelConfig{URL: srv.URL, Method: "POST", Timeout: 5})
	if err := channel.SendResolved(testRule(t, nil), 40, nil); err != nil {
		t.Fatalf("SendResolved() failed: %v", err)
	}
	alertPart, _ := payload["alert"].(map[string]interface{})
	if alertPart["status"] != "resolved" {
		t.Errorf("status = %v, want resolved", alertPart["status"])
	}
}

func TestBuildChannels(t *testing.T) {
	cfg := config.ChannelsConfig{
		Slack:   config.SlackChannelConfig{Enabled: true, WebhookURL: "http://example.invalid", Timeout: 5},
		Webhook: config.WebhookChannelConfig{Enabled: false},
		Email:   config.EmailChannelConfig{Enabled: true, SMTPHost: "localhost", SMTPPort: 25},
	}

	channels := BuildChannels(cfg, zap.NewNop())
	if _, ok := channels["slack"]; !ok {
		t.Error("expected slack channel")
	}
	if _, ok := channels["email"]; !ok {
		t.Error("expected email channel")
	}
	if _, ok := channels["webhook"]; ok {
		t.Error("disabled webhook channel should not be built")
	}
}
