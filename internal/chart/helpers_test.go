package chart

import (
	"image"
)

// rectRaster is a synthetic raster whose dark pixels are the union of rectangles
type rectRaster struct {
	dark []image.Rectangle
}

func (r rectRaster) IsDark(x, y int) bool {
	p := image.Pt(x, y)
	for _, d := range r.dark {
		if p.In(d) {
			return true
		}
	}
	return false
}

func word(text string, x0, y0, x1, y1 float64) Word {
	return Word{Text: text, BBox: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}, Confidence: 0.9}
}

// bar is a dark column 21px wide centered on cx, from row top down to row bottom inclusive
func bar(cx, top, bottom int) image.Rectangle {
	return image.Rect(cx-10, top, cx+11, bottom+1)
}

// chartPage draws one reference chart with its top-left area at dy:
//
//	title "Electricity Usage" above the plot
//	legend "2023", unit "kWh" on the left edge
//	y-axis "0" (center y=300) and "500" (center y=100)
//	months Jan..Apr in a row centered at y=315, each 40px wide
//	bars: Jan 250, Feb 500, Mar none, Apr 100
func chartPage(dy float64) ([]Word, []image.Rectangle) {
	words := []Word{
		word("Electricity", 120, 30+dy, 200, 46+dy),
		word("Usage", 205, 30+dy, 250, 46+dy),
		word("2023", 185, 52+dy, 215, 68+dy),
		word("500", 40, 92+dy, 60, 108+dy),
		word("kWh", 0, 190+dy, 30, 206+dy),
		word("0", 40, 292+dy, 60, 308+dy),
		word("Jan", 100, 305+dy, 140, 325+dy),
		word("Feb", 160, 305+dy, 200, 325+dy),
		word("Mar", 220, 305+dy, 260, 325+dy),
		word("Apr", 280, 305+dy, 320, 325+dy),
	}

	d := int(dy)
	bars := []image.Rectangle{
		bar(120, 200+d, 300+d),
		bar(180, 100+d, 300+d),
		bar(300, 260+d, 300+d),
	}
	return words, bars
}

func referenceChart() UsageChartData {
	return UsageChartData{
		Title: "Electricity Usage",
		Unit:  "kWh",
		Data: []MonthUsage{
			{Month: "Jan", Usage: []SeriesValue{{Year: "2023", Value: 250}}},
			{Month: "Feb", Usage: []SeriesValue{{Year: "2023", Value: 500}}},
			{Month: "Mar", Usage: []SeriesValue{{Year: "2023", Value: 0}}},
			{Month: "Apr", Usage: []SeriesValue{{Year: "2023", Value: 100}}},
		},
	}
}

func texts(words []Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}
