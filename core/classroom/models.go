package classroom

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sciencequest/core"
)

var shiftNames = map[string]string{
	core.ShiftMorning:   "Matutino",
	core.ShiftAfternoon: "Vespertino",
	core.ShiftEvening:   "Noturno",
	core.ShiftFullTime:  "Integral",
}

type Classroom struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Grade     int       `json:"grade"`
	Class     string    `json:"class"`
	Shift     string    `json:"shift"`
	TeacherID string    `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Name is the label shown to users, e.g. "6º A - Matutino".
func (c Classroom) Name() string {
	shift, ok := shiftNames[c.Shift]
	if !ok {
		shift = c.Shift
	}
	return fmt.Sprintf("%dº %s - %s", c.Grade, c.Class, shift)
}

func (c Classroom) MarshalJSON() ([]byte, error) {
	type alias Classroom
	return json.Marshal(struct {
		alias
		Name string `json:"name"`
	}{alias(c), c.Name()})
}

// NewClassroom contains information needed to create a Classroom.
// TeacherID is ignored when a teacher creates the classroom: they become its teacher.
type NewClassroom struct {
	SchoolID  string `json:"school_id" validate:"required"`
	Grade     int    `json:"grade" validate:"required,grade"`
	Class     string `json:"class" validate:"required,classletter"`
	Shift     string `json:"shift" validate:"required,shift"`
	TeacherID string `json:"teacher_id"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.SchoolID = core.CleanString(nc.SchoolID)
	nc.Class = strings.ToUpper(core.CleanString(nc.Class))
	nc.Shift = core.CleanString(nc.Shift, true /* lower */)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	return validate.Struct(nc)
}

// UpdateClassroom defines what may change on a Classroom. Zero values keep the original data.
type UpdateClassroom struct {
	Grade     int    `json:"grade" validate:"required,grade"`
	Class     string `json:"class" validate:"required,classletter"`
	Shift     string `json:"shift" validate:"required,shift"`
	TeacherID string `json:"teacher_id"`
}

func (uc *UpdateClassroom) Validate(orig Classroom, validate *validator.Validate) error {
	if uc.Grade == 0 {
		uc.Grade = orig.Grade
	}
	if uc.Class = strings.ToUpper(core.CleanString(uc.Class)); uc.Class == "" {
		uc.Class = orig.Class
	}
	if uc.Shift = core.CleanString(uc.Shift, true /* lower */); uc.Shift == "" {
		uc.Shift = orig.Shift
	}
	if uc.TeacherID = core.CleanString(uc.TeacherID); uc.TeacherID == "" {
		uc.TeacherID = orig.TeacherID
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	SchoolIDs  []string
	TeacherIDs []string
	Grade      int
	Class      string
	Shift      string
}

// Student is a roster row.
type Student struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	Avatar         string `json:"avatar,omitempty"`
	XP             int    `json:"xp"`
	CompletedUnits int    `json:"completed_units"`
}

type Roster struct {
	Classroom Classroom `json:"classroom"`
	Students  []Student `json:"students"`
	TotalXP   int       `json:"total_xp"`
}
