// Package monitoring checks a finished run against quality thresholds and
// posts alerts to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/territory-cli/internal/config"
	"github.com/sells-group/territory-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectedRows    AlertType = "rejected_rows"
	AlertUnassignedRatio AlertType = "unassigned_ratio"
	AlertNoActivity      AlertType = "no_activity"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSummary against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Evaluate checks the summary against thresholds and returns any alerts.
func (a *Alerter) Evaluate(sum model.RunSummary) []Alert {
	var alerts []Alert
	now := a.now().UTC()

	processed := sum.RowsProcessed()
	rejected := sum.RejectedTotal()
	if processed > 0 && a.cfg.MaxRejectedRatio > 0 {
		ratio := float64(rejected) / float64(processed)
		if ratio > a.cfg.MaxRejectedRatio {
			alerts = append(alerts, Alert{
				Type:     AlertRejectedRows,
				Severity: "high",
				Message: fmt.Sprintf(
					"Rejected %.1f%% of input rows, threshold %.1f%% (%d of %d)",
					ratio*100, a.cfg.MaxRejectedRatio*100, rejected, processed,
				),
				RunID: sum.RunID,
				Details: map[string]any{
					"rejected_ratio": ratio,
					"threshold":      a.cfg.MaxRejectedRatio,
					"rejected":       sum.Rejected,
				},
				Timestamp: now,
			})
		}
	}

	if sum.ZipsConsidered > 0 && a.cfg.MaxUnassignedRatio > 0 {
		ratio := float64(sum.Unassigned) / float64(sum.ZipsConsidered)
		if ratio > a.cfg.MaxUnassignedRatio {
			alerts = append(alerts, Alert{
				Type:     AlertUnassignedRatio,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%.1f%% of ZIPs unassigned, threshold %.1f%% (%d of %d)",
					ratio*100, a.cfg.MaxUnassignedRatio*100, sum.Unassigned, sum.ZipsConsidered,
				),
				RunID: sum.RunID,
				Details: map[string]any{
					"unassigned_ratio": ratio,
					"threshold":        a.cfg.MaxUnassignedRatio,
					"unassigned":       sum.Unassigned,
					"zips_considered":  sum.ZipsConsidered,
				},
				Timestamp: now,
			})
		}
	}

	if sum.ZipsConsidered > 0 && sum.Active == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertNoActivity,
			Severity: "high",
			Message: fmt.Sprintf(
				"No ZIP has direct activity (%d activity rows read)", sum.ActivityRows,
			),
			RunID: sum.RunID,
			Details: map[string]any{
				"activity_rows":    sum.ActivityRows,
				"zero_count_pairs": sum.ZeroCountPairs,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
