// Package inmemdb keeps every table in process memory. It backs dev mode and the tests.
package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/gincana"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
)

type (
	DB struct {
		user      *table[user.User]
		city      *table[school.City]
		school    *table[school.School]
		classroom *table[classroom.Classroom]
		attempt   *table[quiz.Attempt]
		gincana   *table[gincana.Gincana]
	}

	table[T any] struct {
		sync.RWMutex
		rows map[string]*T
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

func Open() *DB {
	return &DB{
		user:      newTable[user.User](),
		city:      newTable[school.City](),
		school:    newTable[school.School](),
		classroom: newTable[classroom.Classroom](),
		attempt:   newTable[quiz.Attempt](),
		gincana:   newTable[gincana.Gincana](),
	}
}

// all returns copies of the rows matching keep; callers hold the lock.
func (t *table[T]) all(keep func(row T) bool) []T {
	rows := make([]T, 0, len(t.rows))
	for _, r := range t.rows {
		if keep == nil || keep(*r) {
			rows = append(rows, *r)
		}
	}
	return rows
}

// lessFunc compares two rows on one field and returns -1, 0 or 1.
type lessFunc[T any] func(a, b T) int

// orderBy sorts rows by the given orderings, falling back to `byDefault`. Unknown fields are ignored.
func orderBy[T any](rows []T, ordering []core.DBOrdering, fields map[string]lessFunc[T], byDefault lessFunc[T]) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(rows[i], rows[j]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return byDefault(rows[i], rows[j]) < 0
	})
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareText compares names case and accent insensitively.
func compareText(a, b string) int {
	return compareStr(core.Fold(a), core.Fold(b))
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
