package spatial

import (
	"sort"

	"github.com/tidwall/rtree"
)

// Index is an R-tree over line centers.
type Index struct {
	tr rtree.RTreeG[int]
}

func NewIndex(lines []Line) *Index {
	x := &Index{}
	for i, l := range lines {
		pt := [2]float64{l.CenterX, l.MidY}
		x.tr.Insert(pt, pt, i)
	}
	return x
}

// Window returns the positions of lines with |dx| <= h and |dy| <= v from (cx, cy), ascending.
func (x *Index) Window(cx, cy, h, v float64) []int {
	var out []int
	x.tr.Search([2]float64{cx - h, cy - v}, [2]float64{cx + h, cy + v}, func(_, _ [2]float64, i int) bool {
		out = append(out, i)
		return true
	})
	sort.Ints(out)
	return out
}
