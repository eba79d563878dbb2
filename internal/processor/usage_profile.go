package processor

import (
	"github.com/adverant/nexus/billchart-worker/internal/chart"
)

// ProfileDimensions is the length of a usage profile vector, one slot per calendar month
const ProfileDimensions = 12

// UsageProfile builds the seasonal shape of a chart: the most recent series
// placed by calendar month and divided by its peak. Months the chart does not
// show stay 0. It reports false when the chart has no positive usage, since a
// zero vector has no cosine direction.
func UsageProfile(data chart.UsageChartData) ([]float32, bool) {
	series := latestSeries(data)
	if series == "" {
		return nil, false
	}

	profile := make([]float32, ProfileDimensions)
	var peak float64
	for _, m := range data.Data {
		idx, ok := chart.MonthIndex(m.Month)
		if !ok {
			continue
		}
		for _, v := range m.Usage {
			if v.Year != series {
				continue
			}
			if v.Value > float64(profile[idx]) {
				profile[idx] = float32(v.Value)
			}
			if v.Value > peak {
				peak = v.Value
			}
		}
	}

	if peak <= 0 {
		return nil, false
	}

	for i := range profile {
		profile[i] = float32(float64(profile[i]) / peak)
	}
	return profile, true
}

// latestSeries picks the last legend entry, which bills print for the current year
func latestSeries(data chart.UsageChartData) string {
	for _, m := range data.Data {
		if len(m.Usage) > 0 {
			return m.Usage[len(m.Usage)-1].Year
		}
	}
	return ""
}
