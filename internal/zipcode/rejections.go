package zipcode

import "sort"

// Rejections counts rejected input rows by reason. The zero value is ready to use.
type Rejections struct {
	counts map[Reason]int
}

// Add records one rejected row.
func (r *Rejections) Add(reason Reason) {
	if reason == ReasonOK {
		return
	}
	if r.counts == nil {
		r.counts = make(map[Reason]int)
	}
	r.counts[reason]++
}

// Count returns the number of rows rejected for reason.
func (r *Rejections) Count(reason Reason) int {
	return r.counts[reason]
}

// Total returns the number of rejected rows across all reasons.
func (r *Rejections) Total() int {
	var n int
	for _, c := range r.counts {
		n += c
	}
	return n
}

// Reasons returns the recorded reasons in sorted order.
func (r *Rejections) Reasons() []Reason {
	out := make([]Reason, 0, len(r.counts))
	for reason := range r.counts {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Map returns a copy of the counts keyed by reason string.
func (r *Rejections) Map() map[string]int {
	out := make(map[string]int, len(r.counts))
	for reason, c := range r.counts {
		out[string(reason)] = c
	}
	return out
}
