package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/schema"
)

func TestDialectQuotingAndPlaceholders(t *testing.T) {
	d := dialect{}

	assert.Equal(t, "`users`", d.QuoteIdentifier("users"))
	assert.Equal(t, "`weird``name`", d.QuoteIdentifier("weird`name"))
	assert.Equal(t, "?", d.Placeholder(1))
	assert.Equal(t, "?", d.Placeholder(7))
}

func TestDialectInsertDoesNotReturnRow(t *testing.T) {
	sql, returnsRow := dialect{}.InsertStatement("`users`", []string{"`email`"}, []string{"?"})
	assert.False(t, returnsRow)
	assert.Equal(t, "INSERT INTO `users` (`email`) VALUES (?)", sql)
}

func TestDialectUpsertOnDuplicateKey(t *testing.T) {
	sql, ok := dialect{}.UpsertStatement("`users`",
		[]string{"`email`", "`name`"},
		[]string{"?", "?"},
		[]string{"`email`"})
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO `users` (`email`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)", sql)
}

func TestDialectUpsertKeyOnlyColumnsStaysValid(t *testing.T) {
	sql, ok := dialect{}.UpsertStatement("`users`",
		[]string{"`email`"},
		[]string{"?"},
		[]string{"`email`"})
	require.True(t, ok)
	assert.Equal(t, "INSERT INTO `users` (`email`) VALUES (?) ON DUPLICATE KEY UPDATE `email` = `email`", sql)
}

func TestDialectBareOffsetUsesHugeLimit(t *testing.T) {
	d := dialect{}
	assert.Equal(t, "LIMIT 18446744073709551615 OFFSET 30", d.LimitClause(0, 30))
	assert.Equal(t, "LIMIT 10 OFFSET 30", d.LimitClause(10, 30))
	assert.Empty(t, d.LimitClause(0, 0))
}

func TestDialectAutoIncrementKeyword(t *testing.T) {
	d := dialect{}
	assert.Equal(t, "AUTO_INCREMENT", d.AutoIncrementKeyword())

	typ, err := d.MapFieldType(schema.Field{Name: "id", Type: schema.TypeBigInt, AutoIncrement: true})
	require.NoError(t, err)
	assert.Equal(t, "BIGINT", typ)
}

func TestDialectRegexpBothModes(t *testing.T) {
	op, ok := dialect{}.RegexMatch(false)
	require.True(t, ok)
	assert.Equal(t, "REGEXP", op)

	op, ok = dialect{}.RegexMatch(true)
	require.True(t, ok)
	assert.Equal(t, "REGEXP", op)
}

func TestBuildDSNRequestsMatchedRowCounts(t *testing.T) {
	dsn := buildDSN(adapter.ConnectionConfig{
		Host:         "db.internal",
		Port:         3306,
		Username:     "app",
		Password:     "secret",
		DatabaseName: "appdb",
	})
	assert.Contains(t, dsn, "tcp(db.internal:3306)/appdb")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestBuildDSNExplicitDSNWins(t *testing.T) {
	dsn := buildDSN(adapter.ConnectionConfig{DSN: "app:secret@tcp(other:3306)/appdb"})
	assert.Equal(t, "app:secret@tcp(other:3306)/appdb", dsn)
}
