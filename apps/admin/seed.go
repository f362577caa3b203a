package main

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/school"
)

//go:embed seed.json
var seedData []byte

type seedCity struct {
	City    string   `json:"city"`
	State   string   `json:"state"`
	Schools []string `json:"schools"`
}

// seed creates the bundled cities and schools, skipping the ones already registered.
func (cli *commandLine) seed(ctx context.Context) (int, int, error) {
	var data []seedCity
	if err := json.Unmarshal(seedData, &data); err != nil {
		return 0, 0, errors.Wrap(err, "reading seed data")
	}

	var nCities, nSchools int
	for _, sc := range data {
		city, created, err := cli.seedCity(ctx, sc)
		if err != nil {
			return nCities, nSchools, err
		}
		if created {
			nCities++
		}

		existing, err := cli.schSvc.QuerySchools(ctx, &school.SchoolFilter{CityIDs: []string{city.ID}}, nil)
		if err != nil {
			return nCities, nSchools, err
		}
		for _, name := range sc.Schools {
			if hasSchool(existing, name) {
				continue
			}
			if _, err = cli.schSvc.CreateSchool(ctx, school.NewSchool{Name: name, CityID: city.ID}); err != nil {
				return nCities, nSchools, errors.Wrapf(err, "creating school %q", name)
			}
			nSchools++
		}
	}
	return nCities, nSchools, nil
}

func (cli *commandLine) seedCity(ctx context.Context, sc seedCity) (school.City, bool, error) {
	cities, err := cli.schSvc.QueryCities(ctx, &school.CityFilter{State: sc.State}, nil)
	if err != nil {
		return school.City{}, false, err
	}
	for _, c := range cities {
		if core.Fold(c.Name) == core.Fold(sc.City) {
			return c, false, nil
		}
	}
	city, err := cli.schSvc.CreateCity(ctx, school.NewCity{Name: sc.City, State: sc.State})
	if err != nil {
		return school.City{}, false, errors.Wrapf(err, "creating city %q", sc.City)
	}
	return city, true, nil
}

func hasSchool(schools []school.School, name string) bool {
	for _, s := range schools {
		if core.Fold(s.Name) == core.Fold(name) {
			return true
		}
	}
	return false
}
