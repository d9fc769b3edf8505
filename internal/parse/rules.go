package parse

import "github.com/joseph-ayodele/docscan/internal/spatial"

// Step is one ordered pass of a parser over a page, writing into the output S.
type Step[S any] struct {
	Name string
	Run  func(p *spatial.Page, out *S)
}

// RunSteps executes steps in order. Claims made by earlier steps are visible to later ones.
func RunSteps[S any](p *spatial.Page, out *S, steps []Step[S]) {
	for _, s := range steps {
		s.Run(p, out)
	}
}

// Rule is one alternative of a first-match chain. Match filters free lines; Extract
// returns the value and any extra lines it consumed besides the matched one.
type Rule[T any] struct {
	Name    string
	Match   func(spatial.Line) bool
	Extract func(p *spatial.Page, l spatial.Line) (T, []spatial.Line, bool)
}

// FirstMatch evaluates rules in precedence order; within a rule, free lines are tried top to
// bottom. The first successful extraction claims its lines under the rule name.
func FirstMatch[T any](p *spatial.Page, rules []Rule[T]) (T, bool) {
	var zero T
	for _, r := range rules {
		for _, l := range p.Unclaimed() {
			if r.Match != nil && !r.Match(l) {
				continue
			}
			v, extra, ok := r.Extract(p, l)
			if !ok {
				continue
			}
			p.Claim(l, r.Name)
			for _, e := range extra {
				p.Claim(e, r.Name)
			}
			return v, true
		}
	}
	return zero, false
}

// EachMatch runs rule over every free line it matches, in order, claiming on success.
func EachMatch[T any](p *spatial.Page, r Rule[T], emit func(T)) {
	for _, l := range p.Unclaimed() {
		if p.Claimed(l) {
			continue
		}
		if r.Match != nil && !r.Match(l) {
			continue
		}
		v, extra, ok := r.Extract(p, l)
		if !ok {
			continue
		}
		p.Claim(l, r.Name)
		for _, e := range extra {
			p.Claim(e, r.Name)
		}
		emit(v)
	}
}
