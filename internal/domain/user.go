package domain

// User is the directory record the engine reads to build snapshots and
// resolve actors. Roles and authority are owned by the surrounding
// application; the engine only reads them.
type User struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              string   `json:"role"`
	Authority         int      `json:"authority"`
	IsActive          bool     `json:"is_active"`
	OrganizationTypes []string `json:"organization_types"`
	MunicipalityID    string   `json:"municipality_id"`
	District          string   `json:"district"`
	Province          string   `json:"province"`
	PushToken         string   `json:"-"`
}

// StakeholderProfile is the requester side of an eligibility check.
type StakeholderProfile struct {
	UserID            string
	Name              string
	Role              string
	Authority         int
	OrganizationTypes []string
	MunicipalityID    string
	District          string
	Province          string
	// AncestorIDs holds the resolved geographic ancestors of the stakeholder
	// location (district, province, ...). Optional.
	AncestorIDs []string
}

// StakeholderFor builds the profile for u, letting the request's location
// refs take precedence over the user's home location.
func StakeholderFor(u *User, loc LocationRefs) StakeholderProfile {
	p := StakeholderProfile{
		UserID:            u.ID,
		Name:              u.Name,
		Role:              u.Role,
		Authority:         u.Authority,
		OrganizationTypes: append([]string(nil), u.OrganizationTypes...),
		MunicipalityID:    u.MunicipalityID,
		District:          u.District,
		Province:          u.Province,
	}
	if loc.MunicipalityID != "" || loc.District != "" {
		p.MunicipalityID = loc.MunicipalityID
		p.District = loc.District
		p.Province = loc.Province
	}
	if loc.OrganizationType != "" {
		p.OrganizationTypes = []string{loc.OrganizationType}
	}
	return p
}
