package quiz

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShuffle(t *testing.T) {
	qs := []Question{
		{ID: "1", Options: []string{"a", "b", "c", "d"}, Answer: 2},
		{ID: "2", Options: []string{"e", "f", "g", "h"}, Answer: 0},
		{ID: "3", Options: []string{"i", "j"}, Answer: 1},
	}
	want := map[string]string{"1": "c", "2": "e", "3": "j"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		Shuffle(rng, qs)
		assert.Len(t, qs, 3)
		for _, q := range qs {
			assert.Equal(t, want[q.ID], q.Options[q.Answer], "question %s", q.ID)
		}
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, findQuestion(qs, "1").Options)
}

func findQuestion(qs []Question, id string) Question {
	for _, q := range qs {
		if q.ID == id {
			return q
		}
	}
	return Question{}
}
