package quiz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/user"
)

const (
	maxSize         = 20
	maxOpenSessions = 10_000
)

var (
	nowFunc = time.Now

	// errors
	ErrStudentsOnly    = errors.New("apenas alunos podem responder quizzes")
	ErrWrongGrade      = errors.New("esta unidade não pertence à série do aluno")
	ErrUnitLocked      = errors.New("conclua a unidade anterior para desbloquear esta")
	ErrSessionNotFound = errors.New("quiz não encontrado ou expirado")
	ErrAttemptNotFound = errors.New("tentativa não encontrada")
	ErrTooManySessions = errors.New("muitos quizzes em andamento, tente novamente em alguns minutos")
)

type (
	Repository interface {
		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		DeleteAttempt(ctx context.Context, id string) error
		// QueryAttempts applies AND operation on available AttemptFilter fields.
		QueryAttempts(ctx context.Context, filter *AttemptFilter, ordering []core.DBOrdering) ([]Attempt, error)
	}

	// XPAwarder credits XP to a student.
	XPAwarder interface {
		AwardXP(ctx context.Context, id string, amount int) (user.User, error)
	}

	Service struct {
		repo     Repository
		catalog  *curriculum.Catalog
		provider *Provider
		users    XPAwarder
		conf     core.QuizConfig

		// open sessions are never evicted: Start fails once maxSessions are open
		sessions    *ttlcache.Cache[string, Session]
		maxSessions int

		mu  sync.Mutex // guards sessions and rng
		rng *rand.Rand
	}
)

func NewService(
	repo Repository,
	catalog *curriculum.Catalog,
	provider *Provider,
	users XPAwarder,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		provider: provider,
		users:    users,
		conf:     conf.Quiz,
		sessions: ttlcache.New[string, Session](
			ttlcache.WithTTL[string, Session](conf.Quiz.SessionTTL),
		),
		maxSessions: maxOpenSessions,
		rng:         rand.New(rand.NewSource(nowFunc().UnixNano())),
	}
}

// Start opens a quiz session on one of the student's unlocked units.
// A size <= 0 falls back to the unit's question count, then to the configured default.
func (svc *Service) Start(ctx context.Context, student user.User, unitCode string, size int) (Session, error) {
	if !student.IsStudent() {
		return Session{}, ErrStudentsOnly
	}
	unit, err := svc.catalog.Unit(unitCode)
	if err != nil {
		return Session{}, err
	}
	if unit.Grade != student.Grade {
		return Session{}, ErrWrongGrade
	}

	completed, err := svc.CompletedSet(ctx, student.ID)
	if err != nil {
		return Session{}, err
	}
	unlocked, err := svc.catalog.IsUnlocked(unit.Code, completed)
	if err != nil {
		return Session{}, err
	}
	if !unlocked {
		return Session{}, ErrUnitLocked
	}

	size = svc.size(unit, size)
	qs, err := svc.provider.Questions(ctx, unit, size)
	if err != nil {
		return Session{}, err
	}

	svc.mu.Lock()
	Shuffle(svc.rng, qs)
	svc.mu.Unlock()
	if len(qs) > size {
		qs = qs[:size]
	}

	now := nowFunc()
	sess := Session{
		ID:        uuid.New().String(),
		StudentID: student.ID,
		Grade:     unit.Grade,
		UnitCode:  unit.Code,
		Questions: qs,
		StartedAt: now,
		ExpiresAt: now.Add(svc.conf.SessionTTL),
	}
	if err := svc.open(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (svc *Service) size(unit curriculum.Unit, size int) int {
	if size <= 0 {
		size = unit.QuestionCount
	}
	if size <= 0 {
		size = svc.conf.DefaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return size
}

// take removes and returns the student's session; sessions are single-use.
// A submission with the wrong number of answers leaves the session open.
func (svc *Service) take(studentID, sessionID string, nAnswers int) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	item := svc.sessions.Get(sessionID)
	if item == nil || item.IsExpired() {
		return Session{}, ErrSessionNotFound
	}
	sess := item.Value()
	if sess.StudentID != studentID || !nowFunc().Before(sess.ExpiresAt) {
		return Session{}, ErrSessionNotFound
	}
	if len(sess.Questions) != nAnswers {
		return Session{}, core.NewValidationError(nil, core.FieldError{
			Field: "answers",
			Error: "o número de respostas deve ser igual ao número de perguntas",
		})
	}
	svc.sessions.Delete(sessionID)
	return sess, nil
}

// Submit scores the answers of an open session, stores the attempt and credits the XP earned.
func (svc *Service) Submit(ctx context.Context, student user.User, sessionID string, sub Submission) (Result, error) {
	if !student.IsStudent() {
		return Result{}, ErrStudentsOnly
	}
	sess, err := svc.take(student.ID, sessionID, len(sub.Answers))
	if err != nil {
		return Result{}, err
	}

	correct, answers := Score(sess.Questions, sub.Answers)
	total := len(sess.Questions)
	att, err := svc.repo.CreateAttempt(ctx, Attempt{
		StudentID:   student.ID,
		Grade:       sess.Grade,
		UnitCode:    sess.UnitCode,
		Total:       total,
		Correct:     correct,
		XP:          XPFor(correct, total, svc.conf),
		Passed:      Passed(correct, total, svc.conf.PassRatio),
		StartedAt:   sess.StartedAt,
		SubmittedAt: nowFunc(),
	})
	if err != nil {
		svc.reopen(sess)
		return Result{}, errors.Wrap(err, "saving attempt")
	}

	res := Result{Attempt: att, Answers: answers, StudentXP: student.XP}
	if att.XP > 0 {
		usr, err := svc.users.AwardXP(ctx, student.ID, att.XP)
		if err != nil {
			// no attempt without its XP: undo it and let the student resubmit
			if delErr := svc.repo.DeleteAttempt(ctx, att.ID); delErr != nil {
				return Result{}, errors.Wrapf(err, "awarding xp (attempt %s not rolled back: %v)", att.ID, delErr)
			}
			svc.reopen(sess)
			return Result{}, errors.Wrap(err, "awarding xp")
		}
		res.StudentXP = usr.XP
	}
	return res, nil
}

func (svc *Service) open(sess Session) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.sessions.Len() >= svc.maxSessions {
		svc.sessions.DeleteExpired()
		if svc.sessions.Len() >= svc.maxSessions {
			return ErrTooManySessions
		}
	}
	svc.sessions.Set(sess.ID, sess, ttlcache.DefaultTTL)
	return nil
}

// reopen puts a taken session back for the rest of its lifetime.
func (svc *Service) reopen(sess Session) {
	ttl := sess.ExpiresAt.Sub(nowFunc())
	if ttl <= 0 {
		return
	}
	svc.sessions.Set(sess.ID, sess, ttl)
}

// Score counts the correct answers; answers[i] is the option chosen for qs[i].
func Score(qs []Question, answers []int) (int, []AnswerResult) {
	correct := 0
	results := make([]AnswerResult, 0, len(qs))
	for i, q := range qs {
		chosen := -1
		if i < len(answers) {
			chosen = answers[i]
		}
		ok := chosen == q.Answer
		if ok {
			correct++
		}
		results = append(results, AnswerResult{
			QuestionID:  q.ID,
			Chosen:      chosen,
			Answer:      q.Answer,
			Correct:     ok,
			Explanation: q.Explanation,
		})
	}
	return correct, results
}

// XPFor returns the XP earned for `correct` right answers out of `total`.
func XPFor(correct, total int, conf core.QuizConfig) int {
	xp := correct * conf.XPPerCorrect
	if total > 0 && correct == total {
		xp += conf.PerfectBonus
	}
	return xp
}

func Passed(correct, total int, ratio float64) bool {
	if total == 0 {
		return false
	}
	return float64(correct)/float64(total) >= ratio
}

func (svc *Service) Attempts(ctx context.Context, filter *AttemptFilter, ordering []core.DBOrdering) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, filter, ordering)
}

// CompletedSet returns the codes of the units the student passed at least once.
func (svc *Service) CompletedSet(ctx context.Context, studentID string) (map[string]bool, error) {
	passed := true
	atts, err := svc.repo.QueryAttempts(ctx, &AttemptFilter{StudentIDs: []string{studentID}, Passed: &passed}, nil)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(atts))
	for _, att := range atts {
		completed[att.UnitCode] = true
	}
	return completed, nil
}

// CompletedUnits returns, per student, the number of distinct units passed.
func (svc *Service) CompletedUnits(ctx context.Context, studentIDs ...string) (map[string]int, error) {
	if len(studentIDs) == 0 {
		return map[string]int{}, nil
	}
	passed := true
	atts, err := svc.repo.QueryAttempts(ctx, &AttemptFilter{StudentIDs: studentIDs, Passed: &passed}, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(atts))
	counts := make(map[string]int, len(studentIDs))
	for _, att := range atts {
		key := att.StudentID + "|" + att.UnitCode
		if !seen[key] {
			seen[key] = true
			counts[att.StudentID]++
		}
	}
	return counts, nil
}

// SkillMap returns the student's units with their lock status.
func (svc *Service) SkillMap(ctx context.Context, student user.User) ([]curriculum.UnitStatus, error) {
	if !student.IsStudent() {
		return nil, ErrStudentsOnly
	}
	completed, err := svc.CompletedSet(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	return svc.catalog.SkillMap(student.Grade, completed)
}
