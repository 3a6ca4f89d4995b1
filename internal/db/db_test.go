package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	cases := []struct{ dsn, want string }{
		{"sqlite://data/app.db", "sqlite"},
		{"file::memory:?cache=shared", "sqlite"},
		{"local.db", "sqlite"},
		{"app:apppass@tcp(127.0.0.1:3306)/chat?parseTime=true", "mysql"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Dialector(tc.dsn).Name(), tc.dsn)
	}
}

func TestOpenSQLite(t *testing.T) {
	gdb, err := Open("file:dbtest?mode=memory&cache=shared")
	require.NoError(t, err)
	var n int
	require.NoError(t, gdb.Raw("SELECT 1").Scan(&n).Error)
	assert.Equal(t, 1, n)
}
