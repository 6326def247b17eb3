package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-request-backend/internal/domain"
)

func TestParseDirectory(t *testing.T) {
	d, err := ParseDirectory([]byte(`
users:
  - id: stakeholder-1
    name: Gainza RHU
    role: stakeholder
    authority: 30
    organization_types: [LGU]
    municipality_id: gainza
  - id: c1
    name: Camarines Sur Coordinator
    role: coordinator
    authority: 70
    organization_types: [LGU, NGO]
    coverage_areas:
      - id: area-1
        name: Rinconada
        units:
          - {id: district_5, kind: district}
  - id: c2
    role: coordinator
    authority: 70
    inactive: true
`))
	require.NoError(t, err)

	ctx := context.Background()
	u, err := d.GetByID(ctx, "stakeholder-1")
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.Equal(t, "gainza", u.MunicipalityID)

	pool, err := d.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "c1", pool[0].UserID)
	assert.Equal(t, domain.GeoUnitDistrict, pool[0].CoverageAreas[0].Units[0].Kind)

	c2, err := d.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, c2.IsActive)
}

func TestParseDirectory_Invalid(t *testing.T) {
	_, err := ParseDirectory([]byte("users: [{name: nobody}]"))
	assert.ErrorContains(t, err, "no id")

	_, err = ParseDirectory([]byte("users: [{id: a}, {id: a}]"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = LoadDirectory("does-not-exist.yaml")
	assert.Error(t, err)
}
