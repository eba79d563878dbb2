/**
 * Chart Candidate Finder
 *
 * Finds vertical bar chart regions on a page using only the spatial alignment
 * of classified OCR words:
 * - month rows form the x-axis (more than 3 aligned month labels)
 * - a column of numbers left of the row forms the y-axis
 * - year tokens around the chart form the legend, in left-to-right order
 * - a unit token near the left edge and a title row above complete the chart
 *
 * Word ownership is tracked in an explicit set passed between the clustering
 * steps, so the first group to claim a month word keeps it.
 */

package chart

import (
	"math"
	"sort"
	"strings"
)

// indexedWord keeps a word together with its position in the page slice
type indexedWord struct {
	index int
	word  Word
}

// wordSet holds page indices of words owned by an accepted group
type wordSet map[int]struct{}

func (s wordSet) has(index int) bool {
	_, ok := s[index]
	return ok
}

// with returns a copy of s that also contains the given words
func (s wordSet) with(words []indexedWord) wordSet {
	next := make(wordSet, len(s)+len(words))
	for k := range s {
		next[k] = struct{}{}
	}
	for _, w := range words {
		next[w.index] = struct{}{}
	}
	return next
}

// monthAxis is an accepted month row
type monthAxis struct {
	months  []indexedWord // left to right
	centerY float64
}

func (a monthAxis) left() float64 { return a.months[0].word.BBox.X0 }

// FindCandidates returns the chart candidates on a page in discovery order.
// An empty result means the page has no chart.
func FindCandidates(words []Word, opts Options, trace TraceFunc) []Candidate {
	if trace == nil {
		trace = nopTrace
	}

	months := selectWords(words, IsMonth)
	sortByPosition(months)

	axes, _ := formMonthAxes(months, opts.RowTolerance, wordSet{})
	trace(LevelDebug, "month axes formed", map[string]interface{}{
		"month_words": len(months),
		"axes":        len(axes),
	})

	numbers := selectWords(words, IsNumeric)
	years := selectWords(words, IsYear)
	units := selectWords(words, IsUnit)
	plain := selectWords(words, isPlainWord)

	// y-axis labels of every accepted axis are claimed page-wide before any
	// legend is picked, so a neighbour's "2000" label never reads as a year
	type axisColumn struct {
		axis  monthAxis
		yAxis []indexedWord
	}
	accepted := make([]axisColumn, 0, len(axes))
	claimed := wordSet{}
	for i, axis := range axes {
		ceiling := ceilingAbove(axes, i, opts.RowTolerance)
		yAxis := selectAxisLabels(numbers, axis, ceiling, opts)
		if len(yAxis) < MinAxisLabels {
			trace(LevelWarn, "month axis discarded: not enough y-axis labels", map[string]interface{}{
				"first_month": axis.months[0].word.Text,
				"months":      len(axis.months),
				"labels":      len(yAxis),
			})
			continue
		}
		claimed = claimed.with(axis.months).with(yAxis)
		accepted = append(accepted, axisColumn{axis: axis, yAxis: yAxis})
	}

	candidates := make([]Candidate, 0, len(accepted))
	for _, col := range accepted {
		axis, yAxis := col.axis, col.yAxis

		bounds := axis.months[0].word.BBox
		for _, m := range axis.months {
			bounds = bounds.Union(m.word.BBox)
		}
		for _, l := range yAxis {
			bounds = bounds.Union(l.word.BBox)
		}

		legend := selectLegend(years, bounds, claimed, opts.LegendRadius)
		unit := selectUnit(units, bounds, opts.UnitReach)
		title := selectTitle(plain, bounds, opts)

		candidate := Candidate{
			ID:     len(candidates) + 1,
			Months: plainWords(axis.months),
			YAxis:  plainWords(yAxis),
			Legend: plainWords(legend),
			Title:  plainWords(title),
			Bounds: bounds,
		}
		if unit != nil {
			u := unit.word
			candidate.Unit = &u
		}

		trace(LevelInfo, "chart candidate found", map[string]interface{}{
			"candidate": candidate.ID,
			"months":    len(candidate.Months),
			"y_labels":  len(candidate.YAxis),
			"legend":    len(candidate.Legend),
			"has_unit":  candidate.Unit != nil,
		})
		candidates = append(candidates, candidate)
	}

	return candidates
}

// formMonthAxes groups month words into rows. A group is accepted when it
// holds at least MinMonthAxis words; its words join the assigned set and are
// not available to later groups.
func formMonthAxes(months []indexedWord, tolerance float64, assigned wordSet) ([]monthAxis, wordSet) {
	axes := []monthAxis{}

	for _, seed := range months {
		if assigned.has(seed.index) {
			continue
		}

		group := alignmentGroup(seed, months, tolerance, assigned)
		if len(group) < MinMonthAxis {
			continue
		}

		assigned = assigned.with(group)
		axes = append(axes, monthAxis{
			months:  group,
			centerY: meanCenterY(group),
		})
	}

	return axes, assigned
}

// alignmentGroup collects the unassigned month words sharing the seed's row
func alignmentGroup(seed indexedWord, months []indexedWord, tolerance float64, assigned wordSet) []indexedWord {
	seedY := seed.word.BBox.CenterY()
	group := []indexedWord{}
	for _, m := range months {
		if assigned.has(m.index) {
			continue
		}
		if math.Abs(m.word.BBox.CenterY()-seedY) <= tolerance {
			group = append(group, m)
		}
	}
	sortByPosition(group)
	return group
}

// ceilingAbove returns the center y of the nearest other month row above axis i
func ceilingAbove(axes []monthAxis, i int, tolerance float64) float64 {
	ceiling := math.Inf(-1)
	for j, other := range axes {
		if j == i {
			continue
		}
		if other.centerY < axes[i].centerY-tolerance && other.centerY > ceiling {
			ceiling = other.centerY
		}
	}
	return ceiling
}

// selectAxisLabels picks the column of numbers left of the month row.
// The column is anchored at the number closest to the first month; other
// numbers join when their horizontal centers line up with the anchor.
func selectAxisLabels(numbers []indexedWord, axis monthAxis, ceiling float64, opts Options) []indexedWord {
	left := axis.left()

	eligible := []indexedWord{}
	for _, n := range numbers {
		b := n.word.BBox
		if b.X1 >= left || left-b.X1 > opts.AxisReach {
			continue
		}
		if b.CenterY() > axis.centerY+opts.AxisTolerance || b.CenterY() <= ceiling {
			continue
		}
		eligible = append(eligible, n)
	}
	if len(eligible) == 0 {
		return eligible
	}

	anchor := eligible[0]
	for _, n := range eligible[1:] {
		if n.word.BBox.X1 > anchor.word.BBox.X1 {
			anchor = n
		}
	}

	column := []indexedWord{}
	for _, n := range eligible {
		if math.Abs(n.word.BBox.CenterX()-anchor.word.BBox.CenterX()) <= opts.AxisTolerance {
			column = append(column, n)
		}
	}

	// top to bottom
	sort.SliceStable(column, func(i, j int) bool {
		return column[i].word.BBox.CenterY() < column[j].word.BBox.CenterY()
	})
	return column
}

// selectLegend returns the year tokens around the chart center, left to right.
// Left-to-right order is taken as series order.
func selectLegend(years []indexedWord, bounds Rect, claimed wordSet, radius float64) []indexedWord {
	cx, cy := bounds.CenterX(), bounds.CenterY()

	legend := []indexedWord{}
	for _, y := range years {
		if claimed.has(y.index) {
			continue
		}
		if math.Hypot(y.word.BBox.CenterX()-cx, y.word.BBox.CenterY()-cy) <= radius {
			legend = append(legend, y)
		}
	}
	sortByPosition(legend)
	return legend
}

// selectUnit returns the unit token closest to the middle of the chart's left edge
func selectUnit(units []indexedWord, bounds Rect, reach float64) *indexedWord {
	var best *indexedWord
	bestDistance := math.Inf(1)

	for i := range units {
		b := units[i].word.BBox
		if math.Abs(b.CenterX()-bounds.X0) > reach {
			continue
		}
		if b.CenterY() < bounds.Y0-reach || b.CenterY() > bounds.Y1+reach {
			continue
		}
		d := math.Hypot(b.CenterX()-bounds.X0, b.CenterY()-bounds.CenterY())
		if d < bestDistance {
			bestDistance = d
			best = &units[i]
		}
	}
	return best
}

// selectTitle returns the row of plain words closest above the chart
func selectTitle(plain []indexedWord, bounds Rect, opts Options) []indexedWord {
	above := []indexedWord{}
	for _, w := range plain {
		b := w.word.BBox
		if b.Y1 > bounds.Y0 || bounds.Y0-b.Y1 > opts.TitleReach {
			continue
		}
		if b.X1 < bounds.X0 || b.X0 > bounds.X1 {
			continue
		}
		above = append(above, w)
	}
	if len(above) == 0 {
		return above
	}

	nearest := above[0]
	for _, w := range above[1:] {
		if w.word.BBox.Y1 > nearest.word.BBox.Y1 {
			nearest = w
		}
	}

	row := []indexedWord{}
	for _, w := range above {
		if math.Abs(w.word.BBox.CenterY()-nearest.word.BBox.CenterY()) <= opts.RowTolerance {
			row = append(row, w)
		}
	}
	sortByPosition(row)
	return row
}

func isPlainWord(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return !IsMonth(text) && !IsNumeric(text) && !IsYear(text) && !IsUnit(text)
}

func selectWords(words []Word, match func(string) bool) []indexedWord {
	selected := []indexedWord{}
	for i, w := range words {
		if match(w.Text) {
			selected = append(selected, indexedWord{index: i, word: w})
		}
	}
	return selected
}

// sortByPosition orders words left to right, then top to bottom, then by page index
func sortByPosition(words []indexedWord) {
	sort.SliceStable(words, func(i, j int) bool {
		a, b := words[i].word.BBox, words[j].word.BBox
		if a.CenterX() != b.CenterX() {
			return a.CenterX() < b.CenterX()
		}
		if a.CenterY() != b.CenterY() {
			return a.CenterY() < b.CenterY()
		}
		return words[i].index < words[j].index
	})
}

func meanCenterY(words []indexedWord) float64 {
	sum := 0.0
	for _, w := range words {
		sum += w.word.BBox.CenterY()
	}
	return sum / float64(len(words))
}

func plainWords(words []indexedWord) []Word {
	out := make([]Word, len(words))
	for i, w := range words {
		out[i] = w.word
	}
	return out
}
