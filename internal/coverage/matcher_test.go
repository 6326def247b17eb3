package coverage

import (
	"testing"

	"event-request-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gainzaStakeholder() domain.StakeholderProfile {
	return domain.StakeholderProfile{
		UserID:            "stakeholder-1",
		Name:              "Gainza RHU",
		Authority:         30,
		OrganizationTypes: []string{"LGU"},
		MunicipalityID:    "gainza",
		District:          "district_2",
		Province:          "camarines_sur",
	}
}

func coordinator(id string, units ...domain.GeoUnit) domain.CoordinatorProfile {
	return domain.CoordinatorProfile{
		UserID:            id,
		Name:              "Coordinator " + id,
		Role:              "coordinator",
		Authority:         70,
		IsActive:          true,
		OrganizationTypes: []string{"LGU"},
		CoverageAreas: []domain.CoverageArea{
			{ID: "area-" + id, Name: "Area " + id, Units: units},
		},
	}
}

func muni(id string) domain.GeoUnit { return domain.GeoUnit{ID: id, Kind: domain.GeoUnitMunicipality} }
func dist(id string) domain.GeoUnit { return domain.GeoUnit{ID: id, Kind: domain.GeoUnitDistrict} }

func TestMatcher_IsEligible(t *testing.T) {
	m := NewMatcher(Band{Min: 60, Max: 80})

	t.Run("matching coordinator", func(t *testing.T) {
		res := m.IsEligible(gainzaStakeholder(), coordinator("c1", muni("gainza"), muni("pili")))
		assert.True(t, res.Valid)
		assert.Empty(t, res.Reason)
		assert.Equal(t, "area-c1", res.Details.MatchedCoverageArea)
		assert.Equal(t, "gainza", res.Details.MatchedUnit)
	})

	t.Run("organization type mismatch", func(t *testing.T) {
		c := coordinator("c1", muni("gainza"))
		c.OrganizationTypes = []string{"NGO"}
		res := m.IsEligible(gainzaStakeholder(), c)
		assert.False(t, res.Valid)
		assert.Equal(t, CodeOrganizationTypeMismatch, res.Code)
		assert.Contains(t, res.Reason, "Organization type mismatch")
		assert.Equal(t, []string{"LGU"}, res.Details.StakeholderOrgTypes)
		assert.Equal(t, []string{"NGO"}, res.Details.CoordinatorOrgTypes)
	})

	t.Run("other district only", func(t *testing.T) {
		res := m.IsEligible(gainzaStakeholder(), coordinator("c1", dist("district_3")))
		assert.False(t, res.Valid)
		assert.Equal(t, CodeCoverageAreaMismatch, res.Code)
		assert.Contains(t, res.Reason, "not within coordinator's coverage areas")
		assert.Equal(t, []string{"district:district_3"}, res.Details.CoverageUnits)
	})

	t.Run("inactive coordinator", func(t *testing.T) {
		c := coordinator("c1", muni("gainza"))
		c.IsActive = false
		res := m.IsEligible(gainzaStakeholder(), c)
		assert.False(t, res.Valid)
		assert.Equal(t, CodeInactive, res.Code)
		assert.Contains(t, res.Reason, "inactive")
	})

	t.Run("authority below band", func(t *testing.T) {
		c := coordinator("c1", muni("gainza"))
		c.Authority = 50
		res := m.IsEligible(gainzaStakeholder(), c)
		assert.False(t, res.Valid)
		assert.Equal(t, CodeAuthorityOutOfBand, res.Code)
		assert.Contains(t, res.Reason, "authority")
	})

	t.Run("authority at upper bound is excluded", func(t *testing.T) {
		c := coordinator("c1", muni("gainza"))
		c.Authority = 80
		res := m.IsEligible(gainzaStakeholder(), c)
		assert.False(t, res.Valid)
		assert.Equal(t, CodeAuthorityOutOfBand, res.Code)
	})

	t.Run("one of two coverage areas matches", func(t *testing.T) {
		c := coordinator("c1", dist("district_3"))
		c.CoverageAreas = append(c.CoverageAreas, domain.CoverageArea{
			ID: "area-second", Name: "Second", Units: []domain.GeoUnit{muni("gainza")},
		})
		res := m.IsEligible(gainzaStakeholder(), c)
		assert.True(t, res.Valid)
		assert.Equal(t, "area-second", res.Details.MatchedCoverageArea)
	})

	t.Run("independent city listed as district and municipality", func(t *testing.T) {
		s := domain.StakeholderProfile{
			UserID:            "naga-stakeholder",
			OrganizationTypes: []string{"LGU"},
			MunicipalityID:    "Naga City",
			District:          "Naga City",
		}
		res := m.IsEligible(s, coordinator("c1", dist("naga_city"), muni("naga_city")))
		assert.True(t, res.Valid)
		assert.Equal(t, "naga_city", res.Details.MatchedUnit)
	})

	t.Run("independent city listed only as district", func(t *testing.T) {
		s := domain.StakeholderProfile{OrganizationTypes: []string{"LGU"}, MunicipalityID: "naga_city"}
		res := m.IsEligible(s, coordinator("c1", dist("naga_city")))
		assert.True(t, res.Valid)
	})

	t.Run("empty stakeholder organization types match all", func(t *testing.T) {
		s := gainzaStakeholder()
		s.OrganizationTypes = nil
		c := coordinator("c1", muni("gainza"))
		c.OrganizationTypes = []string{"NGO"}
		assert.True(t, m.IsEligible(s, c).Valid)
	})

	t.Run("district used when municipality is absent", func(t *testing.T) {
		s := gainzaStakeholder()
		s.MunicipalityID = ""
		assert.True(t, m.IsEligible(s, coordinator("c1", dist("district_2"))).Valid)
		assert.False(t, m.IsEligible(s, coordinator("c2", dist("district_3"))).Valid)
	})

	t.Run("resolved ancestor matches district coverage", func(t *testing.T) {
		s := gainzaStakeholder()
		s.AncestorIDs = []string{"district_2", "camarines_sur"}
		assert.True(t, m.IsEligible(s, coordinator("c1", dist("district_2"))).Valid)
	})

	t.Run("no location at all", func(t *testing.T) {
		s := domain.StakeholderProfile{OrganizationTypes: []string{"LGU"}}
		res := m.IsEligible(s, coordinator("c1", muni("gainza")))
		assert.False(t, res.Valid)
		assert.Equal(t, CodeCoverageAreaMismatch, res.Code)
	})
}

func TestMatcher_ResolveEligibleCoordinators(t *testing.T) {
	m := NewMatcher(Band{Min: 60, Max: 80})

	inactive := coordinator("inactive", muni("gainza"))
	inactive.IsActive = false
	admin := coordinator("admin", muni("gainza"))
	admin.Authority = 100
	zed := coordinator("zed", muni("gainza"))
	zed.Name = "Zed"
	amy := coordinator("amy", muni("gainza"))
	amy.Name = "Amy"

	pool := []domain.CoordinatorProfile{zed, inactive, admin, coordinator("far", dist("district_3")), amy, amy}

	var observed []Code
	got := m.ResolveEligibleCoordinators(gainzaStakeholder(), pool, func(_ domain.CoordinatorProfile, r Result) {
		observed = append(observed, r.Code)
	})

	require.Len(t, got, 2)
	assert.Equal(t, "amy", got[0].UserID)
	assert.Equal(t, "zed", got[1].UserID)
	assert.Equal(t, 70, got[0].Authority)
	assert.Equal(t, []string{"LGU"}, got[0].OrganizationTypes)
	assert.Contains(t, observed, CodeInactive)
	assert.Contains(t, observed, CodeAuthorityOutOfBand)
	assert.Contains(t, observed, CodeCoverageAreaMismatch)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "naga_city", NormalizeID(" Naga  City "))
	assert.Equal(t, "naga_city", NormalizeID("naga-city"))
	assert.Equal(t, "", NormalizeID("   "))
}
