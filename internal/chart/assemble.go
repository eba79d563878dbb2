package chart

import (
	"fmt"
	"strings"
)

// DefaultUnit is used when no unit token was found near the chart
const DefaultUnit = "units"

// Assemble packages scanned bars into the chart result.
// Values are passed through as measured; no plausibility bounds are applied.
func Assemble(c Candidate, data []MonthUsage) UsageChartData {
	title := joinWords(c.Title)
	if title == "" {
		title = fmt.Sprintf("Usage Chart %d", c.ID)
	}

	unit := DefaultUnit
	if c.Unit != nil {
		unit = strings.Trim(strings.TrimSpace(c.Unit.Text), "()[]")
	}

	if data == nil {
		data = []MonthUsage{}
	}

	return UsageChartData{
		Title: title,
		Unit:  unit,
		Data:  data,
	}
}

func joinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
