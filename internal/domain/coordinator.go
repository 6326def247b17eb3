package domain

type GeoUnitKind string

const (
	GeoUnitProvince     GeoUnitKind = "province"
	GeoUnitDistrict     GeoUnitKind = "district"
	GeoUnitMunicipality GeoUnitKind = "municipality"
)

type GeoUnit struct {
	ID   string      `json:"id" yaml:"id"`
	Kind GeoUnitKind `json:"kind" yaml:"kind"`
}

// CoverageArea is a named set of geographic units a coordinator answers for.
type CoverageArea struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Units []GeoUnit `json:"units"`
}

type CoordinatorProfile struct {
	UserID            string
	Name              string
	Role              string
	Authority         int
	IsActive          bool
	OrganizationTypes []string
	CoverageAreas     []CoverageArea
}

func (c CoordinatorProfile) Summary() CoordinatorSummary {
	return CoordinatorSummary{
		UserID:            c.UserID,
		Name:              c.Name,
		RoleSnapshot:      c.Role,
		Authority:         c.Authority,
		OrganizationTypes: append([]string(nil), c.OrganizationTypes...),
	}
}
