package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"hostname":       s.hostname,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// alertingEnabled guards the alert endpoints when alerting is switched off.
func (s *Server) alertingEnabled(c *gin.Context) bool {
	if s.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alerting is disabled"})
		return false
	}
	return true
}

func (s *Server) listActiveAlerts(c *gin.Context) {
	if !s.alertingEnabled(c) {
		return
	}

	records := s.manager.ActiveRecords()
	alerts := make([]gin.H, 0, len(records))
	for _, r := range records {
		alerts = append(alerts, gin.H{
			"alert_id":           r.AlertID,
			"rule_name":          r.RuleName,
			"metric_name":        r.MetricName,
			"severity":           r.Severity,
			"state":              r.State,
			"value":              r.MetricValue,
			"threshold":          r.Threshold,
			"labels":             r.GetLabels(),
			"triggered_at":       r.TriggeredAt.Format(time.RFC3339),
			"last_notified_at":   formatTimePtr(r.LastNotifiedAt),
			"notification_count": r.NotificationCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) alertsBySeverity(c *gin.Context) {
	if !s.alertingEnabled(c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    s.manager.ActiveCount(),
		"counts":   s.manager.CountsBySeverity(),
		"hostname": s.hostname,
	})
}

func (s *Server) listRules(c *gin.Context) {
	if s.evaluator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alerting is disabled"})
		return
	}

	ruleSet := s.evaluator.Rules()
	out := make([]gin.H, 0, len(ruleSet))
	for _, r := range ruleSet {
		out = append(out, gin.H{
			"name":         r.Name,
			"metric_name":  r.MetricName,
			"operator":     r.Operator,
			"threshold":    r.Threshold,
			"for_duration": r.ForDuration.String(),
			"cooldown":     r.Cooldown.String(),
			"severity":     r.Severity,
			"channels":     r.Channels,
			"enabled":      r.Enabled,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(out),
		"enabled": s.evaluator.EnabledRuleCount(),
		"rules":   out,
	})
}

func (s *Server) alertHistory(c *gin.Context) {
	if !s.alertingEnabled(c) {
		return
	}

	ruleName := c.Query("rule")
	if ruleName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rule query parameter is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}

	records := s.manager.History(ruleName, limit)
	history := make([]gin.H, 0, len(records))
	for _, r := range records {
		history = append(history, gin.H{
			"alert_id":           r.AlertID,
			"rule_name":          r.RuleName,
			"severity":           r.Severity,
			"state":              r.State,
			"value":              r.MetricValue,
			"threshold":          r.Threshold,
			"labels":             r.GetLabels(),
			"triggered_at":       r.TriggeredAt.Format(time.RFC3339),
			"resolved_at":        formatTimePtr(r.ResolvedAt),
			"notification_count": r.NotificationCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"rule":    ruleName,
		"count":   len(history),
		"history": history,
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
