package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metricagent/internal/config"
	"metricagent/internal/rules"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// alertDocument is the shape indexed for each alert event.
type alertDocument struct {
	RuleName    string            `json:"rule_name"`
	Severity    string            `json:"severity"`
	Status      string            `json:"status"` // firing, resolved
	MetricName  string            `json:"metric_name"`
	Value       float64           `json:"value"`
	Threshold   float64           `json:"threshold"`
	Operator    string            `json:"operator"`
	Labels      map[string]string `json:"labels,omitempty"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"@timestamp"`
}

// ESChannel indexes alert events into Elasticsearch, one document per
// firing, in a daily-rolled index.
type ESChannel struct {
	es          *elasticsearch.Client
	indexPrefix string
}

func NewESChannel(cfg config.ESChannelConfig) (*ESChannel, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.String())
	}

	return &ESChannel{es: es, indexPrefix: cfg.IndexPrefix}, nil
}

func (c *ESChannel) Send(rule *rules.Rule, value float64, labels map[string]string) error {
	return c.index(rule, value, labels, "firing")
}

// SendResolved indexes a resolution event for the same alert identity.
func (c *ESChannel) SendResolved(rule *rules.Rule, value float64, labels map[string]string) error {
	return c.index(rule, value, labels, "resolved")
}

func (c *ESChannel) index(rule *rules.Rule, value float64, labels map[string]string, status string) error {
	msg := renderMessage(rule, value, labels)
	doc := alertDocument{
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Status:      status,
		MetricName:  rule.MetricName,
		Value:       value,
		Threshold:   rule.Threshold,
		Operator:    rule.Operator,
		Labels:      labels,
		Summary:     msg.Summary,
		Description: msg.Description,
		Timestamp:   time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal alert document: %w", err)
	}

	indexName := fmt.Sprintf("%s-%s", c.indexPrefix, time.Now().Format("2006.01.02"))
	req := esapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(context.Background(), c.es)
	if err != nil {
		return fmt.Errorf("failed to index alert document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch indexing error: %s", res.String())
	}
	return nil
}
