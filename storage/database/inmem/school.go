package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/school"
)

var (
	cityOrderings = map[string]lessFunc[school.City]{
		"name":       func(a, b school.City) int { return compareText(a.Name, b.Name) },
		"state":      func(a, b school.City) int { return compareStr(a.State, b.State) },
		"created_at": func(a, b school.City) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	}
	schoolOrderings = map[string]lessFunc[school.School]{
		"name":       func(a, b school.School) int { return compareText(a.Name, b.Name) },
		"created_at": func(a, b school.School) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	}
)

type schoolRepository struct {
	cities  *table[school.City]
	schools *table[school.School]
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{cities: db.city, schools: db.school}
}

func (repo *schoolRepository) CreateCity(_ context.Context, city school.City) (school.City, error) {
	repo.cities.Lock()
	defer repo.cities.Unlock()

	for _, c := range repo.cities.rows {
		if c.State == city.State && core.Fold(c.Name) == core.Fold(city.Name) {
			return school.City{}, school.ErrCityExists
		}
	}
	city.ID = uuid.New().String()
	repo.cities.rows[city.ID] = &city
	return city, nil
}

func (repo *schoolRepository) QueryCities(_ context.Context, filter *school.CityFilter, ordering []core.DBOrdering) ([]school.City, error) {
	repo.cities.RLock()
	defer repo.cities.RUnlock()

	cities := repo.cities.all(func(c school.City) bool {
		if filter == nil {
			return true
		}
		return (filter.State == "" || c.State == filter.State) &&
			(filter.Search == "" || core.FoldContains(c.Name, filter.Search))
	})
	orderBy(cities, ordering, cityOrderings, func(a, b school.City) int {
		if c := compareText(a.Name, b.Name); c != 0 {
			return c
		}
		return compareStr(a.State, b.State)
	})
	return cities, nil
}

func (repo *schoolRepository) GetCity(_ context.Context, id string) (school.City, error) {
	repo.cities.RLock()
	defer repo.cities.RUnlock()

	if c, ok := repo.cities.rows[id]; ok {
		return *c, nil
	}
	return school.City{}, school.ErrCityNotFound
}

func (repo *schoolRepository) UpdateCity(_ context.Context, city school.City) (school.City, error) {
	repo.cities.Lock()
	defer repo.cities.Unlock()

	if _, ok := repo.cities.rows[city.ID]; !ok {
		return school.City{}, school.ErrCityNotFound
	}
	repo.cities.rows[city.ID] = &city
	return city, nil
}

func (repo *schoolRepository) DeleteCity(_ context.Context, id string) error {
	repo.cities.Lock()
	defer repo.cities.Unlock()

	if _, ok := repo.cities.rows[id]; !ok {
		return school.ErrCityNotFound
	}
	delete(repo.cities.rows, id)
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	for _, s := range repo.schools.rows {
		if s.CityID == sch.CityID && core.Fold(s.Name) == core.Fold(sch.Name) {
			return school.School{}, school.ErrSchoolExists
		}
	}
	sch.ID = uuid.New().String()
	repo.schools.rows[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.SchoolFilter, ordering []core.DBOrdering) ([]school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	schools := repo.schools.all(func(s school.School) bool {
		if filter == nil {
			return true
		}
		return (len(filter.CityIDs) == 0 || contains(filter.CityIDs, s.CityID)) &&
			(filter.Search == "" || core.FoldContains(s.Name, filter.Search))
	})
	orderBy(schools, ordering, schoolOrderings, func(a, b school.School) int {
		if c := compareText(a.Name, b.Name); c != 0 {
			return c
		}
		return compareStr(a.ID, b.ID)
	})
	return schools, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	if s, ok := repo.schools.rows[id]; ok {
		return *s, nil
	}
	return school.School{}, school.ErrSchoolNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	if _, ok := repo.schools.rows[sch.ID]; !ok {
		return school.School{}, school.ErrSchoolNotFound
	}
	repo.schools.rows[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string) error {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	if _, ok := repo.schools.rows[id]; !ok {
		return school.ErrSchoolNotFound
	}
	delete(repo.schools.rows, id)
	return nil
}
