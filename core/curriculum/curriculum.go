// Package curriculum holds the BNCC science units served by the platform and the
// rules that unlock them on a student's skill map.
package curriculum

import (
	"embed"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

//go:embed data/units.json
var dataFS embed.FS

// Unit statuses on the skill map
const (
	StatusLocked    = "locked"
	StatusUnlocked  = "unlocked"
	StatusCompleted = "completed"
)

var (
	// errors
	ErrUnitNotFound = errors.New("unidade não encontrada")
	ErrInvalidGrade = errors.New("a série deve estar entre o 6º e o 9º ano")
)

type Unit struct {
	Code          string   `json:"code"`
	Grade         int      `json:"grade"`
	Order         int      `json:"order"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Skills        []string `json:"skills"` // BNCC codes, e.g. EF06CI01
	Icon          string   `json:"icon"`
	QuestionCount int      `json:"question_count"`
}

// UnitStatus is a skill map node.
type UnitStatus struct {
	Unit
	Status string `json:"status"`
}

type Catalog struct {
	units   []Unit // sorted by grade, then order
	byCode  map[string]Unit
	byGrade map[int][]Unit
}

// LoadCatalog reads the embedded curriculum.
func LoadCatalog() (*Catalog, error) {
	data, err := dataFS.ReadFile("data/units.json")
	if err != nil {
		return nil, errors.Wrap(err, "reading units")
	}
	var units []Unit
	if err = json.Unmarshal(data, &units); err != nil {
		return nil, errors.Wrap(err, "decoding units")
	}
	return NewCatalog(units)
}

// NewCatalog builds a Catalog from units; codes must be unique and grades within 6..9.
func NewCatalog(units []Unit) (*Catalog, error) {
	c := &Catalog{
		units:   make([]Unit, 0, len(units)),
		byCode:  make(map[string]Unit, len(units)),
		byGrade: make(map[int][]Unit),
	}
	for _, u := range units {
		if !core.IsValidGrade(u.Grade) {
			return nil, errors.Errorf("unit %q: invalid grade %d", u.Code, u.Grade)
		}
		if _, ok := c.byCode[u.Code]; ok {
			return nil, errors.Errorf("unit %q: duplicate code", u.Code)
		}
		c.byCode[u.Code] = u
		c.units = append(c.units, u)
	}
	sort.SliceStable(c.units, func(i, j int) bool {
		if c.units[i].Grade != c.units[j].Grade {
			return c.units[i].Grade < c.units[j].Grade
		}
		return c.units[i].Order < c.units[j].Order
	})
	for _, u := range c.units {
		c.byGrade[u.Grade] = append(c.byGrade[u.Grade], u)
	}
	return c, nil
}

// Units returns the units of a grade in skill map order; grade 0 returns every unit.
func (c *Catalog) Units(grade int) []Unit {
	var src []Unit
	if grade == 0 {
		src = c.units
	} else {
		src = c.byGrade[grade]
	}
	units := make([]Unit, len(src))
	copy(units, src)
	return units
}

func (c *Catalog) Unit(code string) (Unit, error) {
	if u, ok := c.byCode[code]; ok {
		return u, nil
	}
	return Unit{}, ErrUnitNotFound
}

// SkillMap returns the grade's units with their status for a student who completed `completed` units.
// The first unit is always unlocked; any other unit unlocks once the previous one is completed.
func (c *Catalog) SkillMap(grade int, completed map[string]bool) ([]UnitStatus, error) {
	if !core.IsValidGrade(grade) {
		return nil, ErrInvalidGrade
	}
	units := c.byGrade[grade]
	nodes := make([]UnitStatus, 0, len(units))
	for i, u := range units {
		status := StatusLocked
		switch {
		case completed[u.Code]:
			status = StatusCompleted
		case i == 0 || completed[units[i-1].Code]:
			status = StatusUnlocked
		}
		nodes = append(nodes, UnitStatus{Unit: u, Status: status})
	}
	return nodes, nil
}

// IsUnlocked reports whether a student with `completed` units may take a quiz on unit `code`.
func (c *Catalog) IsUnlocked(code string, completed map[string]bool) (bool, error) {
	u, err := c.Unit(code)
	if err != nil {
		return false, err
	}
	nodes, err := c.SkillMap(u.Grade, completed)
	if err != nil {
		return false, err
	}
	for _, n := range nodes {
		if n.Code == code {
			return n.Status != StatusLocked, nil
		}
	}
	return false, nil
}
