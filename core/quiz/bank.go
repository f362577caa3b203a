package quiz

import (
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed data/bank/*.json
var bankFS embed.FS

// Bank holds the static questions, keyed by grade and unit code.
type Bank struct {
	questions map[int]map[string][]Question
}

// LoadBank reads the embedded question banks (one `<grade>.json` file per grade).
func LoadBank() (*Bank, error) {
	files, err := fs.Glob(bankFS, "data/bank/*.json")
	if err != nil {
		return nil, errors.Wrap(err, "listing question banks")
	}

	b := &Bank{questions: make(map[int]map[string][]Question)}
	for _, fp := range files {
		grade, err := strconv.Atoi(strings.TrimSuffix(path.Base(fp), ".json"))
		if err != nil {
			return nil, errors.Errorf("question bank %q: file name must be the grade", fp)
		}
		data, err := bankFS.ReadFile(fp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fp)
		}
		var units map[string][]Question
		if err = json.Unmarshal(data, &units); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", fp)
		}
		for code, qs := range units {
			if err = b.Add(grade, code, qs...); err != nil {
				return nil, errors.Wrapf(err, "loading %s", fp)
			}
		}
	}
	return b, nil
}

// NewBank returns an empty Bank.
func NewBank() *Bank {
	return &Bank{questions: make(map[int]map[string][]Question)}
}

// Add appends questions to a unit's bank.
func (b *Bank) Add(grade int, unitCode string, qs ...Question) error {
	units, ok := b.questions[grade]
	if !ok {
		units = make(map[string][]Question)
		b.questions[grade] = units
	}
	for _, q := range qs {
		if len(q.Options) < 2 || q.Answer < 0 || q.Answer >= len(q.Options) || strings.TrimSpace(q.Prompt) == "" {
			return errors.Errorf("question %q: invalid", q.ID)
		}
		q.Grade = grade
		q.UnitCode = unitCode
		q.Source = SourceBank
		units[unitCode] = append(units[unitCode], q)
	}
	return nil
}

// Questions returns a copy of the unit's bank.
func (b *Bank) Questions(grade int, unitCode string) []Question {
	src := b.questions[grade][unitCode]
	qs := make([]Question, 0, len(src))
	for _, q := range src {
		q.Options = append([]string(nil), q.Options...)
		qs = append(qs, q)
	}
	return qs
}

// Count returns the number of questions banked for a unit.
func (b *Bank) Count(grade int, unitCode string) int {
	return len(b.questions[grade][unitCode])
}
