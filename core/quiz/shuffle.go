package quiz

import (
	"math/rand"
)

// Shuffle shuffles the questions order and each question's options, remapping
// the answer index so it still points to the right option. qs is modified in place.
func Shuffle(rng *rand.Rand, qs []Question) {
	rng.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	for i := range qs {
		q := &qs[i]
		opts := append([]string(nil), q.Options...)
		answer := q.Answer
		for newIdx, oldIdx := range rng.Perm(len(opts)) {
			q.Options[newIdx] = opts[oldIdx]
			if oldIdx == answer {
				q.Answer = newIdx
			}
		}
	}
}
