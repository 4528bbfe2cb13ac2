package server

import (
	"strings"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
)

const idempotencyKeyHeader = "Idempotency-Key"

// billingFields may only be set when a record is created.
var billingFields = []string{"action_name", "action", "service_date", "quantity", "billing"}

// parseDateOrToday parses a YYYY-MM-DD query value, defaulting to today.
func parseDateOrToday(value string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return dates.Of(now), nil
	}
	return dates.Parse(value)
}

func hasBillingField(payload map[string]any) bool {
	for _, field := range billingFields {
		if _, ok := payload[field]; ok {
			return true
		}
	}
	return false
}
