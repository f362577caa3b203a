package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sciencequest/core"
)

type City struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"` // UF
	CreatedAt time.Time `json:"created_at"`
}

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CityID    string    `json:"city_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewCity struct {
	Name  string `json:"name" validate:"required,max=80"`
	State string `json:"state" validate:"required,uf"`
}

func (nc *NewCity) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.State = strings.ToUpper(core.CleanString(nc.State))
	return validate.Struct(nc)
}

// UpdateCity holds new values for a City; blank fields keep the original data.
type UpdateCity struct {
	Name  string `json:"name" validate:"required,max=80"`
	State string `json:"state" validate:"required,uf"`
}

func (uc *UpdateCity) Validate(orig City, validate *validator.Validate) error {
	if uc.Name = core.CleanString(uc.Name); uc.Name == "" {
		uc.Name = orig.Name
	}
	if uc.State = strings.ToUpper(core.CleanString(uc.State)); uc.State == "" {
		uc.State = orig.State
	}
	return validate.Struct(uc)
}

type NewSchool struct {
	Name   string `json:"name" validate:"required,max=160"`
	CityID string `json:"city_id" validate:"required"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.CityID = core.CleanString(ns.CityID)
	return validate.Struct(ns)
}

// UpdateSchool holds new values for a School; blank fields keep the original data.
type UpdateSchool struct {
	Name   string `json:"name" validate:"required,max=160"`
	CityID string `json:"city_id" validate:"required"`
}

func (us *UpdateSchool) Validate(orig School, validate *validator.Validate) error {
	if us.Name = core.CleanString(us.Name); us.Name == "" {
		us.Name = orig.Name
	}
	if us.CityID = core.CleanString(us.CityID); us.CityID == "" {
		us.CityID = orig.CityID
	}
	return validate.Struct(us)
}

type CityFilter struct {
	Search string
	State  string
}

type SchoolFilter struct {
	Search  string
	CityIDs []string
	State   string // resolved to CityIDs by the service
}
