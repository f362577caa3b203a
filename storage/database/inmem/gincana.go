package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core/gincana"
)

type gincanaRepository struct {
	db *table[gincana.Gincana]
}

func NewGincanaRepository(db *DB) gincana.Repository {
	return &gincanaRepository{db: db.gincana}
}

func copyGincana(g gincana.Gincana) gincana.Gincana {
	g.Teams = append([]gincana.Team(nil), g.Teams...)
	return g
}

func (repo *gincanaRepository) CreateGincana(_ context.Context, g gincana.Gincana) (gincana.Gincana, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g = copyGincana(g)
	g.ID = uuid.New().String()
	repo.db.rows[g.ID] = &g
	return copyGincana(g), nil
}

func (repo *gincanaRepository) GetGincana(_ context.Context, id string) (gincana.Gincana, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.rows[id]; ok {
		return copyGincana(*g), nil
	}
	return gincana.Gincana{}, gincana.ErrNotFound
}

func (repo *gincanaRepository) UpdateGincana(_ context.Context, g gincana.Gincana) (gincana.Gincana, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[g.ID]; !ok {
		return gincana.Gincana{}, gincana.ErrNotFound
	}
	g = copyGincana(g)
	repo.db.rows[g.ID] = &g
	return copyGincana(g), nil
}

func (repo *gincanaRepository) QueryGincanas(_ context.Context, filter *gincana.QueryFilter) ([]gincana.Gincana, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	gs := repo.db.all(func(g gincana.Gincana) bool {
		if filter == nil {
			return true
		}
		return (len(filter.ClassroomIDs) == 0 || contains(filter.ClassroomIDs, g.ClassroomID)) &&
			(len(filter.TeacherIDs) == 0 || contains(filter.TeacherIDs, g.TeacherID))
	})
	orderBy(gs, nil, nil, func(a, b gincana.Gincana) int {
		return compareTime(b.StartedAt, a.StartedAt)
	})
	for i := range gs {
		gs[i] = copyGincana(gs[i])
	}
	return gs, nil
}
