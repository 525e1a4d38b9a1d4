// Package settlement computes summary metrics over settlement rows.
package settlement

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/pdc/pkg/schema"
)

// Request is a month of settlement rows. Rows are loosely typed; only the
// amount and status fields are read.
type Request struct {
	Month string           `json:"month"`
	Rows  []map[string]any `json:"rows"`
}

// Response carries the metrics keyed by name.
type Response struct {
	Month   string             `json:"month"`
	Metrics map[string]float64 `json:"metrics"`
}

// Metric names.
const (
	MetricTotalCount    = "total_count"
	MetricTotalAmount   = "total_amount"
	MetricSuccessCount  = "success_count"
	MetricSuccessAmount = "success_amount"
	MetricFailedCount   = "failed_count"
	MetricPendingCount  = "pending_count"
	MetricSuccessRate   = "success_rate"
)

// Validate checks that Month is YYYY-MM.
func (r Request) Validate() error {
	if _, err := time.Parse("2006-01", strings.TrimSpace(r.Month)); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "month must be YYYY-MM, got %q", r.Month).
			WithDetails(map[string]any{"field": "month"})
	}
	return nil
}

// Compute tallies counts and amounts by status. success/succeeded/ok count
// as success, failed/fail/error as failed, anything else as pending.
// Amounts that are not numeric count as zero.
func Compute(req Request) Response {
	var (
		totalAmount, successAmount              float64
		successCount, failedCount, pendingCount int
	)

	for _, row := range req.Rows {
		amount := toFloat(row["amount"])
		totalAmount += amount

		switch classify(row["status"]) {
		case statusSuccess:
			successCount++
			successAmount += amount
		case statusFailed:
			failedCount++
		default:
			pendingCount++
		}
	}

	total := len(req.Rows)
	rate := 0.0
	if total > 0 {
		rate = float64(successCount) / float64(total)
	}

	return Response{
		Month: req.Month,
		Metrics: map[string]float64{
			MetricTotalCount:    float64(total),
			MetricTotalAmount:   round(totalAmount, 2),
			MetricSuccessCount:  float64(successCount),
			MetricSuccessAmount: round(successAmount, 2),
			MetricFailedCount:   float64(failedCount),
			MetricPendingCount:  float64(pendingCount),
			MetricSuccessRate:   round(rate, 4),
		},
	}
}

type rowStatus int

const (
	statusPending rowStatus = iota
	statusSuccess
	statusFailed
)

func classify(v any) rowStatus {
	switch strings.ToLower(fmt.Sprint(v)) {
	case "success", "succeeded", "ok":
		return statusSuccess
	case "failed", "fail", "error":
		return statusFailed
	}
	return statusPending
}

func toFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	case bool:
		if n {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
