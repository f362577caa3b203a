package pgdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/school"
)

var (
	cityColumns = map[string]string{
		"name":       "lower(unaccent(name))",
		"state":      "state",
		"created_at": "created_at",
	}
	schoolColumns = map[string]string{
		"name":       "lower(unaccent(name))",
		"created_at": "created_at",
	}
)

type cityRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	State     string    `db:"state"`
	CreatedAt time.Time `db:"created_at"`
}

func (row cityRow) unboil() school.City {
	return school.City{ID: row.ID, Name: row.Name, State: row.State, CreatedAt: row.CreatedAt.UTC()}
}

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CityID    string    `db:"city_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row schoolRow) unboil() school.School {
	return school.School{
		ID:        row.ID,
		Name:      row.Name,
		CityID:    row.CityID,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func trapCityErr(err error) error {
	switch code, _ := pqError(err); code {
	case codeUniqueViolation:
		return school.ErrCityExists
	case codeForeignKeyViolation:
		return core.NewConflictError(school.ErrCityInUse.Error())
	}
	return trapNoRowsErr(err, school.ErrCityNotFound)
}

func trapSchoolErr(err error) error {
	switch code, constraint := pqError(err); {
	case code == codeUniqueViolation:
		return school.ErrSchoolExists
	case code == codeForeignKeyViolation && constraint == "school_city_id_fkey":
		return school.ErrCityNotFound
	case code == codeForeignKeyViolation:
		return core.NewConflictError(school.ErrSchoolInUse.Error())
	}
	return trapNoRowsErr(err, school.ErrSchoolNotFound)
}

func (repo *schoolRepository) CreateCity(ctx context.Context, city school.City) (school.City, error) {
	var row cityRow
	err := repo.db.GetContext(
		ctx, &row,
		`INSERT INTO city (id, name, state, created_at) VALUES ($1, $2, $3, $4) RETURNING *`,
		uuid.New().String(), city.Name, city.State, city.CreatedAt.UTC(),
	)
	if err != nil {
		return school.City{}, trapCityErr(err)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) QueryCities(ctx context.Context, filter *school.CityFilter, ordering []core.DBOrdering) ([]school.City, error) {
	var w where
	if filter != nil {
		if filter.State != "" {
			w.add("state = ?", filter.State)
		}
		if filter.Search != "" {
			w.add("unaccent(name) ILIKE unaccent(?)", likePattern(filter.Search))
		}
	}
	q, args := w.query(repo.db, "SELECT * FROM city", orderClause(ordering, cityColumns, "lower(unaccent(name)) ASC, state ASC"))

	var rows []cityRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying cities")
	}
	cities := make([]school.City, 0, len(rows))
	for _, row := range rows {
		cities = append(cities, row.unboil())
	}
	return cities, nil
}

func (repo *schoolRepository) GetCity(ctx context.Context, id string) (school.City, error) {
	if !validUUID(id) {
		return school.City{}, school.ErrCityNotFound
	}
	var row cityRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM city WHERE id = $1", id); err != nil {
		return school.City{}, trapNoRowsErr(err, school.ErrCityNotFound)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) UpdateCity(ctx context.Context, city school.City) (school.City, error) {
	if !validUUID(city.ID) {
		return school.City{}, school.ErrCityNotFound
	}
	var row cityRow
	err := repo.db.GetContext(
		ctx, &row,
		"UPDATE city SET name = $1, state = $2 WHERE id = $3 RETURNING *",
		city.Name, city.State, city.ID,
	)
	if err != nil {
		return school.City{}, trapCityErr(err)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) DeleteCity(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrCityNotFound
	}
	return repo.delete(ctx, "DELETE FROM city WHERE id = $1", id, trapCityErr, school.ErrCityNotFound)
}

func (repo *schoolRepository) delete(ctx context.Context, query, id string, trap func(error) error, notFound error) error {
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return trap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	var row schoolRow
	err := repo.db.GetContext(
		ctx, &row,
		`INSERT INTO school (id, name, city_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		uuid.New().String(), sch.Name, sch.CityID, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC(),
	)
	if err != nil {
		return school.School{}, trapSchoolErr(err)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.SchoolFilter, ordering []core.DBOrdering) ([]school.School, error) {
	var w where
	if filter != nil {
		if len(filter.CityIDs) > 0 {
			w.add("city_id::text = ANY(?)", pq.Array(filter.CityIDs))
		}
		if filter.Search != "" {
			w.add("unaccent(name) ILIKE unaccent(?)", likePattern(filter.Search))
		}
	}
	q, args := w.query(repo.db, "SELECT * FROM school", orderClause(ordering, schoolColumns, "lower(unaccent(name)) ASC, id ASC"))

	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.unboil())
	}
	return schools, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if !validUUID(id) {
		return school.School{}, school.ErrSchoolNotFound
	}
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM school WHERE id = $1", id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrSchoolNotFound)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if !validUUID(sch.ID) {
		return school.School{}, school.ErrSchoolNotFound
	}
	var row schoolRow
	err := repo.db.GetContext(
		ctx, &row,
		"UPDATE school SET name = $1, city_id = $2, updated_at = $3 WHERE id = $4 RETURNING *",
		sch.Name, sch.CityID, sch.UpdatedAt.UTC(), sch.ID,
	)
	if err != nil {
		return school.School{}, trapSchoolErr(err)
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrSchoolNotFound
	}
	return repo.delete(ctx, "DELETE FROM school WHERE id = $1", id, trapSchoolErr, school.ErrSchoolNotFound)
}
