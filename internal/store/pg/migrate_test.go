package pg

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/dropDatabas3/authority/migrations/postgres"
)

func TestPlanOrdering(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_roles_up.sql":   {Data: []byte("select 2")},
		"0001_init_up.sql":    {Data: []byte("select 1")},
		"0001_init_down.sql":  {Data: []byte("drop 1")},
		"0002_roles_down.sql": {Data: []byte("drop 2")},
		"README.md":           {Data: []byte("x")},
	}

	up, err := Plan(fsys, "up", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init_up.sql", "0002_roles_up.sql"}, up)

	down, err := Plan(fsys, "down", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_roles_down.sql"}, down)

	_, err = Plan(fsys, "sideways", 0)
	assert.Error(t, err)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	up, err := Plan(migrations.FS, "up", 0)
	require.NoError(t, err)
	down, err := Plan(migrations.FS, "down", 0)
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.Len(t, down, len(up))
}
