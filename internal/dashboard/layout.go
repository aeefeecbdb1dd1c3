package dashboard

import "sort"

// Row is one horizontal band of panels. Weights split the width left over
// after every panel got its MinWidth; no weights means equal shares.
type Row struct {
	IDs       []string
	Weights   []int
	MinHeight int
}

type Cell struct {
	ID   string
	X, Y int
	W, H int
}

type Placement struct {
	Cells   []Cell
	Warning string
}

// Layout places registered panels into rows. The first row keeps its
// MinHeight; spare height goes to the others. When a row is too narrow
// only the Essential panels of that row are kept.
type Layout struct {
	Rows      []Row
	Essential []string
	registry  *Registry
}

func NewLayout(registry *Registry, essential []string, rows ...Row) *Layout {
	return &Layout{Rows: rows, Essential: essential, registry: registry}
}

func (l *Layout) Compute(width, height int) Placement {
	var out Placement

	heights := make([]int, len(l.Rows))
	used := 0
	for i, row := range l.Rows {
		heights[i] = row.MinHeight
		used += row.MinHeight
	}
	if slack := height - used; slack > 0 && len(l.Rows) > 1 {
		rest := len(l.Rows) - 1
		for i := 1; i < len(heights); i++ {
			heights[i] += slack / rest
			if i-1 < slack%rest {
				heights[i]++
			}
		}
	}

	y := 0
	for i, row := range l.Rows {
		widths, ids, warning := l.rowWidths(row, width)
		if warning != "" {
			out.Warning = warning
		}
		x := 0
		for j, id := range ids {
			out.Cells = append(out.Cells, Cell{ID: id, X: x, Y: y, W: widths[j], H: heights[i]})
			x += widths[j]
		}
		y += heights[i]
	}
	return out
}

func (l *Layout) minWidth(id string) int {
	if c := l.registry.Get(id); c != nil {
		return c.MinWidth()
	}
	return 20
}

func (l *Layout) rowWidths(row Row, total int) ([]int, []string, string) {
	widths := make([]int, len(row.IDs))
	remaining := total
	for i, id := range row.IDs {
		widths[i] = l.minWidth(id)
		remaining -= widths[i]
	}
	if remaining < 0 {
		return l.narrowRow(row, total)
	}

	weights := row.Weights
	if len(weights) == 0 {
		weights = equalWeights(len(row.IDs))
	}
	weightSum := 0
	for _, w := range weights {
		weightSum += w
	}
	if weightSum == 0 {
		return widths, row.IDs, ""
	}

	type share struct {
		idx  int
		frac float64
	}
	shares := make([]share, 0, len(row.IDs))
	given := 0
	for i, weight := range weights {
		if i >= len(row.IDs) {
			break
		}
		exact := float64(remaining*weight) / float64(weightSum)
		whole := int(exact)
		widths[i] += whole
		given += whole
		shares = append(shares, share{idx: i, frac: exact - float64(whole)})
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; i < remaining-given && i < len(shares); i++ {
		widths[shares[i].idx]++
	}
	return widths, row.IDs, ""
}

func (l *Layout) narrowRow(row Row, width int) ([]int, []string, string) {
	var kept []string
	for _, id := range row.IDs {
		if contains(l.Essential, id) {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		kept = row.IDs[:1]
	}

	if len(kept) < len(row.IDs) && width >= 10 {
		widths, _, _ := l.rowWidths(Row{IDs: kept, Weights: equalWeights(len(kept)), MinHeight: row.MinHeight}, width)
		return widths, kept, "Some panels hidden (terminal too narrow)"
	}

	if width <= 0 {
		return []int{1}, kept[:1], "Terminal too narrow - display truncated"
	}
	if len(kept) > width {
		kept = kept[:width]
	}
	return splitEven(len(kept), width), kept, "Terminal too narrow - display truncated"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// splitEven divides width into n parts that differ by at most one.
func splitEven(n, width int) []int {
	widths := make([]int, n)
	for i := range widths {
		widths[i] = width / n
		if i < width%n {
			widths[i]++
		}
	}
	return widths
}

func equalWeights(n int) []int {
	weights := make([]int, n)
	for i := range weights {
		weights[i] = 1
	}
	return weights
}
