package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"event-request-backend/internal/domain"
)

type seedArea struct {
	ID    string           `yaml:"id"`
	Name  string           `yaml:"name"`
	Units []domain.GeoUnit `yaml:"units"`
}

type seedUser struct {
	ID                string     `yaml:"id"`
	Name              string     `yaml:"name"`
	Email             string     `yaml:"email"`
	Role              string     `yaml:"role"`
	Authority         int        `yaml:"authority"`
	Inactive          bool       `yaml:"inactive"`
	OrganizationTypes []string   `yaml:"organization_types"`
	MunicipalityID    string     `yaml:"municipality_id"`
	District          string     `yaml:"district"`
	Province          string     `yaml:"province"`
	PushToken         string     `yaml:"push_token"`
	CoverageAreas     []seedArea `yaml:"coverage_areas"`
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

// LoadDirectory builds a directory from a YAML file of the form
// `users: [{id, role, authority, coverage_areas: [...]}]`. Users with
// coverage areas join the coordinator candidate pool.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}
	return ParseDirectory(data)
}

func ParseDirectory(data []byte) (*Directory, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse directory file: %w", err)
	}
	d := NewDirectory()
	for i, su := range f.Users {
		if su.ID == "" {
			return nil, fmt.Errorf("directory user %d has no id", i)
		}
		if _, dup := d.users.Load(su.ID); dup {
			return nil, fmt.Errorf("duplicate directory user %q", su.ID)
		}
		u := domain.User{
			ID:                su.ID,
			Name:              su.Name,
			Email:             su.Email,
			Role:              su.Role,
			Authority:         su.Authority,
			IsActive:          !su.Inactive,
			OrganizationTypes: su.OrganizationTypes,
			MunicipalityID:    su.MunicipalityID,
			District:          su.District,
			Province:          su.Province,
			PushToken:         su.PushToken,
		}
		if len(su.CoverageAreas) == 0 {
			d.PutUser(u)
			continue
		}
		areas := make([]domain.CoverageArea, len(su.CoverageAreas))
		for j, a := range su.CoverageAreas {
			areas[j] = domain.CoverageArea{ID: a.ID, Name: a.Name, Units: a.Units}
		}
		d.PutCoordinator(u, areas...)
	}
	return d, nil
}
