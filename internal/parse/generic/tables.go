package generic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/docscan/internal/document"
	"github.com/joseph-ayodele/docscan/internal/extract"
	"github.com/joseph-ayodele/docscan/internal/spatial"
)

var reNumeric = regexp.MustCompile(`^-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)

// cell returns a number for numeric text and the trimmed text otherwise.
func cell(s string) any {
	s = strings.TrimSpace(s)
	if !reNumeric.MatchString(s) {
		return s
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return s
	}
	return d.InexactFloat64()
}

// layoutGrid turns a backend table into rows of cell text.
func layoutGrid(t extract.Table) [][]string {
	rows, cols := t.RowCount, t.ColumnCount
	for _, c := range t.Cells {
		if c.RowIndex+1 > rows {
			rows = c.RowIndex + 1
		}
		if c.ColumnIndex+1 > cols {
			cols = c.ColumnIndex + 1
		}
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	grid := make([][]string, rows)
	for i := range grid {
		grid[i] = make([]string, cols)
	}
	for _, c := range t.Cells {
		if c.RowIndex < 0 || c.ColumnIndex < 0 {
			continue
		}
		grid[c.RowIndex][c.ColumnIndex] = strings.TrimSpace(c.Content)
	}
	return grid
}

// lineGrid rebuilds one table from positioned lines: a new row starts when a line sits more
// than tol below the first line of the current row; each row is ordered left to right.
func lineGrid(lines []spatial.Line, tol float64) [][]string {
	var rows [][]spatial.Line
	var rowStart float64
	for _, l := range lines {
		if len(rows) == 0 || l.MidY-rowStart > tol {
			rows = append(rows, nil)
			rowStart = l.MidY
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], l)
	}
	grid := make([][]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].CenterX < row[j].CenterX })
		texts := make([]string, len(row))
		for i, l := range row {
			texts[i] = strings.TrimSpace(l.Text)
		}
		grid = append(grid, texts)
	}
	return grid
}

// buildTable reads row 0 as headers and keys every other row by its first cell.
func buildTable(grid [][]string) document.Table {
	t := document.Table{Headers: []string{}, Rows: []document.Row{}}
	if len(grid) == 0 {
		return t
	}
	t.Headers = append(t.Headers, grid[0]...)
	for _, r := range grid[1:] {
		if len(r) == 0 {
			continue
		}
		row := document.Row{Key: r[0], Values: map[string]any{}}
		for j := 1; j < len(r); j++ {
			row.Values[header(t.Headers, j)] = cell(r[j])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func header(headers []string, j int) string {
	if j < len(headers) && headers[j] != "" {
		return headers[j]
	}
	return fmt.Sprintf("column%d", j+1)
}

func (p *Parser) tables(res extract.Result) []document.Table {
	out := []document.Table{}
	if res.Layout != nil && len(res.Layout.Tables) > 0 {
		for _, lt := range res.Layout.Tables {
			if grid := layoutGrid(lt); len(grid) > 0 {
				out = append(out, buildTable(grid))
			}
		}
		return out
	}
	lines := spatial.Normalize(res.Pages)
	if len(lines) == 0 {
		return out
	}
	return append(out, buildTable(lineGrid(lines, p.cfg.RowTolerance)))
}
