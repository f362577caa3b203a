package school

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

var (
	// errors
	ErrCityNotFound   = errors.New("cidade não encontrada")
	ErrSchoolNotFound = errors.New("escola não encontrada")
	ErrCityExists     = errors.New("esta cidade já está cadastrada neste estado")
	ErrSchoolExists   = errors.New("esta escola já está cadastrada nesta cidade")
	ErrCityInUse      = errors.New("a cidade possui escolas cadastradas")
	ErrSchoolInUse    = errors.New("a escola possui usuários ou turmas vinculados")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCity(ctx context.Context, city City) (City, error)
		QueryCities(ctx context.Context, filter *CityFilter, ordering []core.DBOrdering) ([]City, error)
		GetCity(ctx context.Context, id string) (City, error)
		UpdateCity(ctx context.Context, city City) (City, error)
		DeleteCity(ctx context.Context, id string) error

		CreateSchool(ctx context.Context, sch School) (School, error)
		QuerySchools(ctx context.Context, filter *SchoolFilter, ordering []core.DBOrdering) ([]School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		DeleteSchool(ctx context.Context, id string) error
	}

	// UsageChecker reports whether records elsewhere still point to a school.
	UsageChecker interface {
		SchoolInUse(ctx context.Context, schoolID string) (bool, error)
	}

	Service struct {
		repo     Repository
		usage    []UsageChecker
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate, usage ...UsageChecker) *Service {
	return &Service{repo: repo, usage: usage, validate: validate}
}

// AddUsageCheckers registers services that may still reference schools.
// Not safe to call once the service is in use.
func (svc *Service) AddUsageCheckers(usage ...UsageChecker) {
	svc.usage = append(svc.usage, usage...)
}

// Cities

func (svc *Service) checkCityUniqueness(ctx context.Context, name, state string, excludedID string) error {
	cities, err := svc.repo.QueryCities(ctx, &CityFilter{State: state}, nil)
	if err != nil {
		return errors.Wrap(err, "querying cities")
	}
	folded := core.Fold(name)
	for _, c := range cities {
		if c.ID != excludedID && core.Fold(c.Name) == folded {
			return core.NewValidationError(ErrCityExists, core.FieldError{Field: "name", Error: ErrCityExists.Error()})
		}
	}
	return nil
}

func (svc *Service) CreateCity(ctx context.Context, data NewCity) (City, error) {
	if err := data.Validate(svc.validate); err != nil {
		return City{}, err
	}
	if err := svc.checkCityUniqueness(ctx, data.Name, data.State, ""); err != nil {
		return City{}, err
	}
	return svc.repo.CreateCity(ctx, City{Name: data.Name, State: data.State, CreatedAt: nowFunc().UTC()})
}

func (svc *Service) QueryCities(ctx context.Context, filter *CityFilter, ordering []core.DBOrdering) ([]City, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
		filter.State = strings.ToUpper(core.CleanString(filter.State))
	}
	return svc.repo.QueryCities(ctx, filter, ordering)
}

func (svc *Service) GetCity(ctx context.Context, id string) (City, error) {
	return svc.repo.GetCity(ctx, id)
}

func (svc *Service) UpdateCity(ctx context.Context, id string, data UpdateCity) (City, error) {
	city, err := svc.repo.GetCity(ctx, id)
	if err != nil {
		return City{}, err
	}
	if err = data.Validate(city, svc.validate); err != nil {
		return City{}, err
	}
	if err = svc.checkCityUniqueness(ctx, data.Name, data.State, city.ID); err != nil {
		return City{}, err
	}
	city.Name = data.Name
	city.State = data.State
	return svc.repo.UpdateCity(ctx, city)
}

func (svc *Service) DeleteCity(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCity(ctx, id); err != nil {
		return err
	}
	schools, err := svc.repo.QuerySchools(ctx, &SchoolFilter{CityIDs: []string{id}}, nil)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if len(schools) > 0 {
		return core.NewConflictError(ErrCityInUse.Error())
	}
	return svc.repo.DeleteCity(ctx, id)
}

// Schools

func (svc *Service) checkCity(ctx context.Context, cityID string) error {
	if _, err := svc.repo.GetCity(ctx, cityID); err != nil {
		if errors.Cause(err) == ErrCityNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "city_id", Error: ErrCityNotFound.Error()})
		}
		return errors.Wrap(err, "finding city")
	}
	return nil
}

func (svc *Service) checkSchoolUniqueness(ctx context.Context, name, cityID string, excludedID string) error {
	schools, err := svc.repo.QuerySchools(ctx, &SchoolFilter{CityIDs: []string{cityID}}, nil)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	folded := core.Fold(name)
	for _, s := range schools {
		if s.ID != excludedID && core.Fold(s.Name) == folded {
			return core.NewValidationError(ErrSchoolExists, core.FieldError{Field: "name", Error: ErrSchoolExists.Error()})
		}
	}
	return nil
}

func (svc *Service) CreateSchool(ctx context.Context, data NewSchool) (School, error) {
	if err := data.Validate(svc.validate); err != nil {
		return School{}, err
	}
	if err := svc.checkCity(ctx, data.CityID); err != nil {
		return School{}, err
	}
	if err := svc.checkSchoolUniqueness(ctx, data.Name, data.CityID, ""); err != nil {
		return School{}, err
	}
	now := nowFunc().UTC()
	return svc.repo.CreateSchool(ctx, School{Name: data.Name, CityID: data.CityID, CreatedAt: now, UpdatedAt: now})
}

// QuerySchools lists schools; filter.State narrows the search to the cities of that state.
func (svc *Service) QuerySchools(ctx context.Context, filter *SchoolFilter, ordering []core.DBOrdering) ([]School, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
		if state := strings.ToUpper(core.CleanString(filter.State)); state != "" {
			cities, err := svc.repo.QueryCities(ctx, &CityFilter{State: state}, nil)
			if err != nil {
				return nil, errors.Wrap(err, "querying cities")
			}
			ids := make([]string, 0, len(cities))
			for _, c := range cities {
				if len(filter.CityIDs) == 0 || contains(filter.CityIDs, c.ID) {
					ids = append(ids, c.ID)
				}
			}
			if len(ids) == 0 {
				return []School{}, nil
			}
			filter.CityIDs = ids
		}
	}
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *Service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

// SchoolExists satisfies the lookups other packages do before linking records to a school.
func (svc *Service) SchoolExists(ctx context.Context, id string) (bool, error) {
	if _, err := svc.repo.GetSchool(ctx, id); err != nil {
		if errors.Cause(err) == ErrSchoolNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *Service) UpdateSchool(ctx context.Context, id string, data UpdateSchool) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	if err = data.Validate(sch, svc.validate); err != nil {
		return School{}, err
	}
	if data.CityID != sch.CityID {
		if err = svc.checkCity(ctx, data.CityID); err != nil {
			return School{}, err
		}
	}
	if err = svc.checkSchoolUniqueness(ctx, data.Name, data.CityID, sch.ID); err != nil {
		return School{}, err
	}
	sch.Name = data.Name
	sch.CityID = data.CityID
	sch.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *Service) DeleteSchool(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSchool(ctx, id); err != nil {
		return err
	}
	for _, checker := range svc.usage {
		inUse, err := checker.SchoolInUse(ctx, id)
		if err != nil {
			return errors.Wrap(err, "checking school usage")
		}
		if inUse {
			return core.NewConflictError(ErrSchoolInUse.Error())
		}
	}
	return svc.repo.DeleteSchool(ctx, id)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
