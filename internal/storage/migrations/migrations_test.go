package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second; with a semicolon
CREATE TABLE b (y String DEFAULT 'a;b', z String DEFAULT 'it''s') ENGINE = Memory;
SELECT 1 -- trailing
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 3)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Contains(t, stmts[1], "DEFAULT 'a;b'")
	assert.Contains(t, stmts[1], "'it''s'")
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestSplitStatements_Empty(t *testing.T) {
	assert.Empty(t, splitStatements("-- nothing here\n\n;;"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/pools")
	require.NoError(t, err)
	assert.Equal(t, "pools", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)

	_, err = databaseFromDSN("clickhouse://localhost:9000/a`b")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	for _, dialect := range []string{DialectPostgres, DialectClickhouse} {
		migrations, err := Load(dialect)
		require.NoError(t, err, dialect)
		require.NotEmpty(t, migrations, dialect)

		first := migrations[0]
		assert.Equal(t, "001", first.Version, dialect)
		assert.Equal(t, "001_pool_creations.sql", first.Name, dialect)
		assert.Contains(t, first.SQL, "pool_creations", dialect)
	}

	_, err := Load("sqlite")
	assert.Error(t, err)
}

func TestLoad_ClickhouseStatements(t *testing.T) {
	migrations, err := Load(DialectClickhouse)
	require.NoError(t, err)

	stmts := splitStatements(migrations[0].SQL)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "ReplacingMergeTree")
}
