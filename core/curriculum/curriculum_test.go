package curriculum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)

	for grade := 6; grade <= 9; grade++ {
		units := c.Units(grade)
		require.NotEmpty(t, units, "grade %d", grade)
		for i, u := range units {
			assert.Equal(t, grade, u.Grade)
			assert.NotEmpty(t, u.Skills, u.Code)
			if i > 0 {
				assert.Less(t, units[i-1].Order, u.Order)
			}
		}
	}
	assert.Len(t, c.Units(0), len(c.Units(6))+len(c.Units(7))+len(c.Units(8))+len(c.Units(9)))
	assert.Empty(t, c.Units(5))

	u, err := c.Unit("6-celula")
	require.NoError(t, err)
	assert.Equal(t, 6, u.Grade)

	_, err = c.Unit("lol")
	assert.Equal(t, ErrUnitNotFound, err)
}

func TestNewCatalog_invalid(t *testing.T) {
	_, err := NewCatalog([]Unit{{Code: "a", Grade: 5}})
	assert.Error(t, err)

	_, err = NewCatalog([]Unit{{Code: "a", Grade: 6}, {Code: "a", Grade: 7}})
	assert.Error(t, err)
}

func TestCatalog_SkillMap(t *testing.T) {
	c, err := NewCatalog([]Unit{
		{Code: "c", Grade: 6, Order: 3},
		{Code: "a", Grade: 6, Order: 1},
		{Code: "b", Grade: 6, Order: 2},
		{Code: "x", Grade: 7, Order: 1},
	})
	require.NoError(t, err)

	statuses := func(nodes []UnitStatus) []string {
		out := make([]string, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.Code+":"+n.Status)
		}
		return out
	}

	tests := []struct {
		name      string
		grade     int
		completed map[string]bool
		want      []string
		wantErr   error
	}{
		{name: "invalid grade", grade: 10, wantErr: ErrInvalidGrade},
		{name: "nothing completed", grade: 6, want: []string{"a:unlocked", "b:locked", "c:locked"}},
		{name: "first completed", grade: 6, completed: map[string]bool{"a": true}, want: []string{"a:completed", "b:unlocked", "c:locked"}},
		{
			name: "all completed", grade: 6, completed: map[string]bool{"a": true, "b": true, "c": true},
			want: []string{"a:completed", "b:completed", "c:completed"},
		},
		{
			name: "completed unit unlocks the next one", grade: 6, completed: map[string]bool{"b": true},
			want: []string{"a:unlocked", "b:completed", "c:unlocked"},
		},
		{name: "other grade", grade: 7, completed: map[string]bool{"a": true}, want: []string{"x:unlocked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := c.SkillMap(tt.grade, tt.completed)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, statuses(nodes))
		})
	}

	ok, err := c.IsUnlocked("b", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsUnlocked("b", map[string]bool{"a": true})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.IsUnlocked("lol", nil)
	assert.Equal(t, ErrUnitNotFound, err)
}
