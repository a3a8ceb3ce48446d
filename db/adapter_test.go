package db

import (
	"testing"

	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryIsolation(t *testing.T) {
	first, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)
	second, err := Open(config.DatabaseConfig{Mode: ModeMemory})
	require.NoError(t, err)

	require.NoError(t, first.Exec("CREATE TABLE marker (id INTEGER PRIMARY KEY)").Error)
	require.NoError(t, first.Exec("INSERT INTO marker (id) VALUES (1)").Error)

	var count int64
	err = second.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'marker'").
		Scan(&count).Error
	require.NoError(t, err)
	require.Zero(t, count, "second open must not see the first database")
}

func TestOpenUnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "bogus"})
	require.Error(t, err)
}
