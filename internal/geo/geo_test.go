package geo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHierarchy = `units:
  - id: Province-1
    kind: province
  - id: district_2
    kind: district
    parent: province-1
  - id: City of X
    kind: municipality
    parent: district_2
`

func TestLoadHierarchy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleHierarchy), 0o600))

	h, err := LoadHierarchy(path)
	require.NoError(t, err)

	ctx := context.Background()
	got, err := h.Ancestors(ctx, "city-of-x")
	require.NoError(t, err)
	assert.Equal(t, []string{"district_2", "province_1"}, got)

	got, err = h.Ancestors(ctx, "province_1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.Ancestors(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)

	u, ok := h.Unit("CITY OF X")
	require.True(t, ok)
	assert.Equal(t, "municipality", string(u.Kind))
}

func TestNewHierarchy_Rejects(t *testing.T) {
	_, err := NewHierarchy([]Unit{{ID: "a", Parent: "b"}, {ID: "b", Parent: "a"}})
	assert.ErrorContains(t, err, "cycle")

	_, err = NewHierarchy([]Unit{{ID: "a"}, {ID: "A"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewHierarchy([]Unit{{ID: " "}})
	assert.Error(t, err)
}

func TestLoadHierarchy_MissingFile(t *testing.T) {
	_, err := LoadHierarchy(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
