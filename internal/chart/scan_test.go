package chart

import (
	"image"
	"reflect"
	"testing"

	apperrors "github.com/adverant/nexus/billchart-worker/internal/errors"
)

// singleMonth is a candidate with one month label "Jan" spanning x 100..140 at y 305..325
func singleMonth(legend ...Word) Candidate {
	return Candidate{
		ID:     1,
		Months: []Word{word("Jan", 100, 305, 140, 325)},
		YAxis:  []Word{label("500", 100), label("0", 300)},
		Legend: legend,
		Bounds: Rect{X0: 40, Y0: 92, X1: 140, Y1: 325},
	}
}

func zeroBased() Calibration {
	return Calibration{ValuePerPixel: 2.5, ZeroLineY: 300}
}

func TestScan_BarHeight(t *testing.T) {
	testCases := []struct {
		name     string
		dark     []image.Rectangle
		cal      Calibration
		expected float64
	}{
		{
			name:     "Bar top at row 200",
			dark:     []image.Rectangle{bar(120, 200, 300)},
			cal:      zeroBased(),
			expected: 250,
		},
		{
			name:     "Full height bar",
			dark:     []image.Rectangle{bar(120, 100, 300)},
			cal:      zeroBased(),
			expected: 500,
		},
		{
			name:     "No bar",
			dark:     nil,
			cal:      zeroBased(),
			expected: 0,
		},
		{
			name: "Gridline thinner than a bar is ignored",
			dark: []image.Rectangle{
				image.Rect(40, 250, 140, 252),
			},
			cal:      zeroBased(),
			expected: 0,
		},
		{
			name: "Bar below a gridline",
			dark: []image.Rectangle{
				bar(120, 240, 300),
				image.Rect(40, 150, 140, 152),
			},
			cal:      zeroBased(),
			expected: 150,
		},
		{
			name:     "Bar reaching the chart top",
			dark:     []image.Rectangle{bar(120, 50, 300)},
			cal:      zeroBased(),
			expected: 520,
		},
		{
			name:     "Non-zero floor measures from the extrapolated zero line",
			dark:     []image.Rectangle{bar(120, 200, 300)},
			cal:      Calibration{ValuePerPixel: 2, ZeroLineY: 350},
			expected: 300,
		},
		{
			name:     "Fractional values are rounded",
			dark:     []image.Rectangle{bar(120, 199, 300)},
			cal:      Calibration{ValuePerPixel: 0.3, ZeroLineY: 300},
			expected: 30,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Scan(rectRaster{dark: tc.dark}, singleMonth(), tc.cal, DefaultOptions())
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if len(data) != 1 || len(data[0].Usage) != 1 {
				t.Fatalf("Expected one month with one bar, got %+v", data)
			}
			if got := data[0].Usage[0].Value; got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestScan_ShortBarNeedsMinBarRun(t *testing.T) {
	// two dark rows: a very small bar or a gridline, indistinguishable by height
	raster := rectRaster{dark: []image.Rectangle{bar(120, 299, 300)}}
	cal := Calibration{ValuePerPixel: 2, ZeroLineY: 300}

	literal := DefaultOptions()
	literal.MinBarRun = 1

	testCases := []struct {
		name     string
		opts     Options
		expected float64
	}{
		{name: "Default run length reads zero", opts: DefaultOptions(), expected: 0},
		{name: "Single row run reads the bar", opts: literal, expected: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Scan(raster, singleMonth(), cal, tc.opts)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if got := data[0].Usage[0].Value; got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestScan_SeriesLabels(t *testing.T) {
	// Jan spans x 100..140; two series scan columns 110 and 130
	twoBars := rectRaster{dark: []image.Rectangle{
		image.Rect(102, 200, 119, 301),
		image.Rect(122, 100, 139, 301),
	}}

	testCases := []struct {
		name     string
		legend   []Word
		expected []SeriesValue
	}{
		{
			// the single slot scans column 120, the gap between the bars
			name:     "No legend falls back to Year 1",
			legend:   nil,
			expected: []SeriesValue{{Year: "Year 1", Value: 0}},
		},
		{
			name:   "Two series in legend order",
			legend: []Word{word("2022", 150, 52, 180, 68), word("2023", 185, 52, 215, 68)},
			expected: []SeriesValue{
				{Year: "2022", Value: 250},
				{Year: "2023", Value: 500},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Scan(twoBars, singleMonth(tc.legend...), zeroBased(), DefaultOptions())
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if !reflect.DeepEqual(data[0].Usage, tc.expected) {
				t.Errorf("Expected %+v, got %+v", tc.expected, data[0].Usage)
			}
		})
	}
}

func TestScan_CanonicalMonthLabel(t *testing.T) {
	c := singleMonth()
	c.Months = []Word{word("OCT.", 100, 305, 140, 325)}

	data, err := Scan(rectRaster{}, c, zeroBased(), DefaultOptions())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if data[0].Month != "Oct" {
		t.Errorf("Expected month Oct, got %q", data[0].Month)
	}
}

func TestScan_Failures(t *testing.T) {
	testCases := []struct {
		name   string
		raster Raster
		cal    Calibration
	}{
		{name: "Missing raster", raster: nil, cal: zeroBased()},
		{name: "Zero scale", raster: rectRaster{}, cal: Calibration{ZeroLineY: 300}},
		{name: "Negative scale", raster: rectRaster{}, cal: Calibration{ValuePerPixel: -1, ZeroLineY: 300}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Scan(tc.raster, singleMonth(), tc.cal, DefaultOptions())
			if !apperrors.HasCode(err, apperrors.ErrorScanFailed) {
				t.Errorf("Expected SCAN_FAILED, got %v", err)
			}
		})
	}
}

func TestFindBarTop(t *testing.T) {
	column := func(rows ...[2]int) rectRaster {
		r := rectRaster{}
		for _, span := range rows {
			r.dark = append(r.dark, image.Rect(0, span[0], 1, span[1]+1))
		}
		return r
	}

	testCases := []struct {
		name   string
		raster rectRaster
		minRun int
		top    int
		found  bool
	}{
		{name: "Single run", raster: column([2]int{40, 100}), minRun: 3, top: 40, found: true},
		{name: "Short run then bar", raster: column([2]int{90, 91}, [2]int{20, 60}), minRun: 3, top: 20, found: true},
		{name: "Exactly minRun rows", raster: column([2]int{50, 52}), minRun: 3, top: 50, found: true},
		{name: "Too short", raster: column([2]int{50, 51}), minRun: 3, found: false},
		{name: "Run clipped at top", raster: column([2]int{0, 100}), minRun: 3, top: 10, found: true},
		{name: "Empty column", raster: column(), minRun: 3, found: false},
		{name: "Non-positive minRun means one row", raster: column([2]int{70, 70}), minRun: 0, top: 70, found: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			top, found := findBarTop(tc.raster, 0, 100, 10, tc.minRun)
			if found != tc.found {
				t.Fatalf("Expected found=%v, got %v", tc.found, found)
			}
			if found && top != tc.top {
				t.Errorf("Expected top %d, got %d", tc.top, top)
			}
		})
	}
}

func TestSlotColumn(t *testing.T) {
	box := Rect{X0: 100, X1: 140}

	testCases := []struct {
		i, series int
		expected  int
	}{
		{0, 1, 120},
		{0, 2, 110},
		{1, 2, 130},
		{0, 4, 105},
		{3, 4, 135},
	}

	for _, tc := range testCases {
		if got := slotColumn(box, tc.i, tc.series); got != tc.expected {
			t.Errorf("slotColumn(%d of %d) = %d, want %d", tc.i, tc.series, got, tc.expected)
		}
	}
}

func TestScan_SingleMonthScenario(t *testing.T) {
	c := Candidate{
		ID:     1,
		Months: []Word{word("Oct", 50, 305, 90, 325)},
		YAxis:  []Word{word("500", 10, 92, 30, 108), word("0", 10, 292, 30, 308)},
		Legend: []Word{word("2023", 55, 52, 85, 68)},
		Bounds: Rect{X0: 10, Y0: 92, X1: 90, Y1: 325},
	}
	raster := rectRaster{dark: []image.Rectangle{image.Rect(70, 200, 71, 301)}}

	cal, err := Calibrate(c.YAxis)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if cal.ValuePerPixel != 2.5 {
		t.Errorf("Expected valuePerPixel 2.5, got %v", cal.ValuePerPixel)
	}

	data, err := Scan(raster, c, cal, DefaultOptions())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []MonthUsage{{Month: "Oct", Usage: []SeriesValue{{Year: "2023", Value: 250}}}}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("Expected %+v, got %+v", want, data)
	}
}
