package gincana

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sciencequest/core"
)

const (
	StatusRunning  = "running"
	StatusFinished = "finished"

	MinTeams    = 2
	MaxTeams    = 8
	MinDuration = time.Minute
	MaxDuration = 120 * time.Minute
)

type Team struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Gincana is a team competition held in a classroom against a countdown.
type Gincana struct {
	ID          string
	ClassroomID string
	TeacherID   string
	Teams       []Team
	Duration    time.Duration
	StartedAt   time.Time
	EndsAt      time.Time
	FinishedAt  time.Time // zero until finished early
	CreatedAt   time.Time
}

func (g Gincana) Status(now time.Time) string {
	if !g.FinishedAt.IsZero() || !now.Before(g.EndsAt) {
		return StatusFinished
	}
	return StatusRunning
}

func (g Gincana) IsRunning(now time.Time) bool {
	return g.Status(now) == StatusRunning
}

// Remaining is the countdown shown to the classroom; zero once finished.
func (g Gincana) Remaining(now time.Time) time.Duration {
	if !g.IsRunning(now) {
		return 0
	}
	return g.EndsAt.Sub(now)
}

// Winners returns the teams with the highest score; several teams may tie.
func (g Gincana) Winners() []Team {
	var winners []Team
	best := -1
	for _, t := range g.Teams {
		switch {
		case t.Score > best:
			best = t.Score
			winners = []Team{t}
		case t.Score == best:
			winners = append(winners, t)
		}
	}
	return winners
}

func (g Gincana) team(name string) int {
	folded := core.Fold(name)
	for i, t := range g.Teams {
		if core.Fold(t.Name) == folded {
			return i
		}
	}
	return -1
}

func (g Gincana) MarshalJSON() ([]byte, error) {
	now := nowFunc()
	view := struct {
		ID               string     `json:"id"`
		ClassroomID      string     `json:"classroom_id"`
		TeacherID        string     `json:"teacher_id"`
		Teams            []Team     `json:"teams"`
		DurationMinutes  int        `json:"duration_minutes"`
		Status           string     `json:"status"`
		RemainingSeconds int        `json:"remaining_seconds"`
		Winners          []Team     `json:"winners,omitempty"`
		StartedAt        time.Time  `json:"started_at"`
		EndsAt           time.Time  `json:"ends_at"`
		FinishedAt       *time.Time `json:"finished_at,omitempty"`
	}{
		ID:               g.ID,
		ClassroomID:      g.ClassroomID,
		TeacherID:        g.TeacherID,
		Teams:            g.Teams,
		DurationMinutes:  int(g.Duration / time.Minute),
		Status:           g.Status(now),
		RemainingSeconds: int(g.Remaining(now).Seconds()),
		StartedAt:        g.StartedAt,
		EndsAt:           g.EndsAt,
	}
	if !g.IsRunning(now) {
		view.Winners = g.Winners()
	}
	if !g.FinishedAt.IsZero() {
		view.FinishedAt = &g.FinishedAt
	}
	return json.Marshal(view)
}

// NewGincana is what a teacher fills in to start a competition.
type NewGincana struct {
	ClassroomID     string   `json:"classroom_id" validate:"required"`
	Teams           []string `json:"teams" validate:"min=2,max=8,dive,notblank,max=40"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=1,max=120"`
}

func (ng *NewGincana) Validate(validate *validator.Validate) error {
	ng.ClassroomID = core.CleanString(ng.ClassroomID)
	for i, name := range ng.Teams {
		ng.Teams[i] = core.CleanString(name)
	}
	if err := validate.Struct(ng); err != nil {
		return err
	}
	seen := make(map[string]bool, len(ng.Teams))
	for _, name := range ng.Teams {
		folded := core.Fold(name)
		if seen[folded] {
			return core.NewValidationError(ErrDuplicateTeam, core.FieldError{Field: "teams", Error: ErrDuplicateTeam.Error()})
		}
		seen[folded] = true
	}
	return nil
}

// AddPoints credits (or, with a negative value, debits) a team.
type AddPoints struct {
	Team   string `json:"team" validate:"required"`
	Points int    `json:"points" validate:"required,min=-1000,max=1000"`
}

func (ap *AddPoints) Validate(validate *validator.Validate) error {
	ap.Team = core.CleanString(ap.Team)
	return validate.Struct(ap)
}

type QueryFilter struct {
	ClassroomIDs []string
	TeacherIDs   []string
}
