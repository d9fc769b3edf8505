package spatial

// Scorer ranks candidate lines around an anchor.
//
//	score = digits(text)*LengthWeight - (hDist + vDist) + AboveBonus (when the candidate sits above)
type Scorer struct {
	LengthWeight float64
	AboveBonus   float64
	MaxH         float64
	MaxV         float64
}

type Candidate struct {
	Line  Line
	Score float64
	HDist float64
	VDist float64
}

func (c Candidate) distance() float64 { return c.HDist + c.VDist }

func (s Scorer) Score(anchor, cand Line) Candidate {
	h, v := HDist(anchor, cand), VDist(anchor, cand)
	score := float64(len(Digits(cand.Text)))*s.LengthWeight - (h + v)
	if cand.MidY < anchor.MidY {
		score += s.AboveBonus
	}
	return Candidate{Line: cand, Score: score, HDist: h, VDist: v}
}

// Best returns the top free candidate around anchor accepted by pred.
// Ties go to the longer digit run, then the smaller distance, then the earlier line.
func (s Scorer) Best(p *Page, anchor Line, pred func(Line) bool) (Candidate, bool) {
	var best Candidate
	found := false
	for _, l := range p.Window(anchor, s.MaxH, s.MaxV) {
		if pred != nil && !pred(l) {
			continue
		}
		c := s.Score(anchor, l)
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	la, lb := len(Digits(a.Line.Text)), len(Digits(b.Line.Text))
	if la != lb {
		return la > lb
	}
	if a.distance() != b.distance() {
		return a.distance() < b.distance()
	}
	return a.Line.Index < b.Line.Index
}
