package quiz

import (
	"time"
)

// Question sources
const (
	SourceBank      = "bank"
	SourceGenerated = "generated"
)

type Question struct {
	ID          string   `json:"id"`
	Grade       int      `json:"grade"`
	UnitCode    string   `json:"unit_code"`
	Skill       string   `json:"skill,omitempty"` // BNCC code
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"` // index in Options
	Explanation string   `json:"explanation,omitempty"`
	Source      string   `json:"source"`
}

// Public hides the answer and the explanation.
func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{ID: q.ID, Skill: q.Skill, Prompt: q.Prompt, Options: opts}
}

// PublicQuestion is a Question as shown to a student while taking a quiz.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Skill   string   `json:"skill,omitempty"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// GenerateRequest describes the questions asked from a Generator.
type GenerateRequest struct {
	Grade     int
	UnitCode  string
	UnitTitle string
	Skills    []string
	Count     int
}

// Session is a started quiz waiting for answers.
type Session struct {
	ID        string
	StudentID string
	Grade     int
	UnitCode  string
	Questions []Question
	StartedAt time.Time
	ExpiresAt time.Time
}

// SessionView is what a student receives when starting a quiz.
type SessionView struct {
	ID        string           `json:"id"`
	UnitCode  string           `json:"unit_code"`
	Questions []PublicQuestion `json:"questions"`
	StartedAt time.Time        `json:"started_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (s Session) View() SessionView {
	qs := make([]PublicQuestion, 0, len(s.Questions))
	for _, q := range s.Questions {
		qs = append(qs, q.Public())
	}
	return SessionView{ID: s.ID, UnitCode: s.UnitCode, Questions: qs, StartedAt: s.StartedAt, ExpiresAt: s.ExpiresAt}
}

// Attempt is a submitted quiz.
type Attempt struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Grade       int       `json:"grade"`
	UnitCode    string    `json:"unit_code"`
	Total       int       `json:"total"`
	Correct     int       `json:"correct"`
	XP          int       `json:"xp"`
	Passed      bool      `json:"passed"`
	StartedAt   time.Time `json:"started_at"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submission holds a student's chosen option index for each question, in order.
type Submission struct {
	Answers []int `json:"answers" validate:"required"`
}

type AnswerResult struct {
	QuestionID  string `json:"question_id"`
	Chosen      int    `json:"chosen"`
	Answer      int    `json:"answer"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

type Result struct {
	Attempt   Attempt        `json:"attempt"`
	Answers   []AnswerResult `json:"answers"`
	StudentXP int            `json:"student_xp"`
}

type AttemptFilter struct {
	StudentIDs    []string
	UnitCode      string
	Passed        *bool
	SubmittedFrom time.Time
	SubmittedTo   time.Time
}
