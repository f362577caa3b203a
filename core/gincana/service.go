package gincana

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("gincana não encontrada")
	ErrDuplicateTeam = errors.New("os nomes das equipes devem ser diferentes")
	ErrTeamNotFound  = errors.New("equipe não encontrada")
	ErrNotRunning    = errors.New("a gincana já terminou")
	ErrForbidden     = errors.New("você não tem acesso a esta gincana")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateGincana(ctx context.Context, g Gincana) (Gincana, error)
		GetGincana(ctx context.Context, id string) (Gincana, error)
		UpdateGincana(ctx context.Context, g Gincana) (Gincana, error)
		QueryGincanas(ctx context.Context, filter *QueryFilter) ([]Gincana, error)
	}

	// Classrooms resolves a classroom the actor may manage.
	Classrooms interface {
		Get(ctx context.Context, actor user.User, id string) (classroom.Classroom, error)
	}

	Service struct {
		repo       Repository
		classrooms Classrooms
		validate   *validator.Validate

		mu sync.Mutex // serializes score updates
	}
)

func NewService(repo Repository, classrooms Classrooms, validate *validator.Validate) *Service {
	return &Service{repo: repo, classrooms: classrooms, validate: validate}
}

// Start opens a gincana on one of the actor's classrooms with every team at zero points.
func (svc *Service) Start(ctx context.Context, actor user.User, data NewGincana) (Gincana, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Gincana{}, err
	}
	cls, err := svc.classrooms.Get(ctx, actor, data.ClassroomID)
	if err != nil {
		return Gincana{}, err
	}

	teams := make([]Team, 0, len(data.Teams))
	for _, name := range data.Teams {
		teams = append(teams, Team{Name: name})
	}
	now := nowFunc().UTC()
	duration := time.Duration(data.DurationMinutes) * time.Minute
	return svc.repo.CreateGincana(ctx, Gincana{
		ClassroomID: cls.ID,
		TeacherID:   actor.ID,
		Teams:       teams,
		Duration:    duration,
		StartedAt:   now,
		EndsAt:      now.Add(duration),
		CreatedAt:   now,
	})
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Gincana, error) {
	g, err := svc.repo.GetGincana(ctx, id)
	if err != nil {
		return Gincana{}, err
	}
	if actor.IsAdmin() || g.TeacherID == actor.ID {
		return g, nil
	}
	if _, err = svc.classrooms.Get(ctx, actor, g.ClassroomID); err != nil {
		if errors.Cause(err) == classroom.ErrForbidden {
			return Gincana{}, ErrForbidden
		}
		return Gincana{}, err
	}
	return g, nil
}

// Query lists the gincanas of a classroom, newest first.
func (svc *Service) Query(ctx context.Context, actor user.User, classroomID string) ([]Gincana, error) {
	if _, err := svc.classrooms.Get(ctx, actor, classroomID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGincanas(ctx, &QueryFilter{ClassroomIDs: []string{classroomID}})
}

// AddPoints changes a team's score while the gincana runs. Scores never go below zero.
func (svc *Service) AddPoints(ctx context.Context, actor user.User, id string, data AddPoints) (Gincana, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Gincana{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	g, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Gincana{}, err
	}
	if !g.IsRunning(nowFunc()) {
		return Gincana{}, ErrNotRunning
	}
	i := g.team(data.Team)
	if i < 0 {
		return Gincana{}, core.NewValidationError(ErrTeamNotFound, core.FieldError{Field: "team", Error: ErrTeamNotFound.Error()})
	}

	teams := append([]Team(nil), g.Teams...)
	teams[i].Score += data.Points
	if teams[i].Score < 0 {
		teams[i].Score = 0
	}
	g.Teams = teams
	return svc.repo.UpdateGincana(ctx, g)
}

// Finish stops the countdown early.
func (svc *Service) Finish(ctx context.Context, actor user.User, id string) (Gincana, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	g, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Gincana{}, err
	}
	now := nowFunc().UTC()
	if !g.IsRunning(now) {
		return Gincana{}, ErrNotRunning
	}
	g.FinishedAt = now
	return svc.repo.UpdateGincana(ctx, g)
}
