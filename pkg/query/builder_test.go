package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
)

// testDialect quotes with double quotes and numbers placeholders $N, so
// rendered SQL is easy to assert against.
type testDialect struct {
	noRegex bool
}

func (d testDialect) Type() dbcapabilities.DatabaseID {
	if d.noRegex {
		return dbcapabilities.SQLServer
	}
	return dbcapabilities.PostgreSQL
}

func (testDialect) QuoteIdentifier(name string) string { return `"` + name + `"` }
func (testDialect) Placeholder(index int) string       { return fmt.Sprintf("$%d", index) }
func (testDialect) SanitizeValue(v interface{}) (interface{}, error) {
	return v, nil
}
func (d testDialect) RegexMatch(caseInsensitive bool) (string, bool) {
	if d.noRegex {
		return "", false
	}
	if caseInsensitive {
		return "~*", true
	}
	return "~", true
}
func (testDialect) LimitClause(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func TestBuildWhereEquality(t *testing.T) {
	where, err := BuildWhere(testDialect{}, adapter.Filter{"status": "active"}, 1)
	require.NoError(t, err)
	assert.Equal(t, `"status" = $1`, where.SQL)
	assert.Equal(t, []interface{}{"active"}, where.Args)
}

func TestBuildWhereEmptyFilterMatchesEverything(t *testing.T) {
	where, err := BuildWhere(testDialect{}, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, where.SQL)
	assert.Empty(t, where.Args)
}

func TestBuildWhereSortsFieldsForDeterminism(t *testing.T) {
	filter := adapter.Filter{"b": 2, "a": 1, "c": 3}
	for i := 0; i < 10; i++ {
		where, err := BuildWhere(testDialect{}, filter, 1)
		require.NoError(t, err)
		assert.Equal(t, `"a" = $1 AND "b" = $2 AND "c" = $3`, where.SQL)
		assert.Equal(t, []interface{}{1, 2, 3}, where.Args)
	}
}

func TestBuildWhereComparisonOperators(t *testing.T) {
	tests := []struct {
		name     string
		filter   adapter.Filter
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "gte",
			filter:   adapter.Filter{"age": adapter.Filter{adapter.OpGTE: 21}},
			wantSQL:  `"age" >= $1`,
			wantArgs: []interface{}{21},
		},
		{
			name:     "gt and lt combined",
			filter:   adapter.Filter{"age": adapter.Filter{adapter.OpGT: 18, adapter.OpLT: 65}},
			wantSQL:  `("age" > $1 AND "age" < $2)`,
			wantArgs: []interface{}{18, 65},
		},
		{
			name:     "ne",
			filter:   adapter.Filter{"status": adapter.Filter{adapter.OpNE: "gone"}},
			wantSQL:  `"status" <> $1`,
			wantArgs: []interface{}{"gone"},
		},
		{
			name:    "ne nil renders IS NOT NULL",
			filter:  adapter.Filter{"deleted_at": adapter.Filter{adapter.OpNE: nil}},
			wantSQL: `"deleted_at" IS NOT NULL`,
		},
		{
			name:    "nil equality renders IS NULL",
			filter:  adapter.Filter{"deleted_at": nil},
			wantSQL: `"deleted_at" IS NULL`,
		},
		{
			name:     "like",
			filter:   adapter.Filter{"name": adapter.Filter{adapter.OpLike: "a%"}},
			wantSQL:  `"name" LIKE $1`,
			wantArgs: []interface{}{"a%"},
		},
		{
			name:     "in",
			filter:   adapter.Filter{"id": adapter.Filter{adapter.OpIn: []interface{}{1, 2, 3}}},
			wantSQL:  `"id" IN ($1, $2, $3)`,
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:    "empty in list matches nothing",
			filter:  adapter.Filter{"id": adapter.Filter{adapter.OpIn: []interface{}{}}},
			wantSQL: `1 = 0`,
		},
		{
			name:     "regex",
			filter:   adapter.Filter{"name": adapter.Filter{adapter.OpRegex: "^a"}},
			wantSQL:  `"name" ~ $1`,
			wantArgs: []interface{}{"^a"},
		},
		{
			name:     "regex case-insensitive via options",
			filter:   adapter.Filter{"name": adapter.Filter{adapter.OpRegex: "^a", adapter.OpOptions: "i"}},
			wantSQL:  `"name" ~* $1`,
			wantArgs: []interface{}{"^a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, err := BuildWhere(testDialect{}, tt.filter, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, where.SQL)
			assert.Equal(t, tt.wantArgs, where.Args)
		})
	}
}

func TestBuildWhereComposition(t *testing.T) {
	filter := adapter.Filter{
		adapter.OpOr: []adapter.Filter{
			{"name": adapter.Filter{adapter.OpLike: "a%"}},
			{"id": adapter.Filter{adapter.OpIn: []interface{}{1, 2}}},
		},
	}

	where, err := BuildWhere(testDialect{}, filter, 1)
	require.NoError(t, err)
	assert.Equal(t, `(("name" LIKE $1) OR ("id" IN ($2, $3)))`, where.SQL)
	assert.Equal(t, []interface{}{"a%", 1, 2}, where.Args)
}

func TestBuildWhereNestedComposition(t *testing.T) {
	filter := adapter.Filter{
		adapter.OpAnd: []adapter.Filter{
			{"status": "active"},
			{adapter.OpOr: []adapter.Filter{
				{"age": adapter.Filter{adapter.OpGTE: 21}},
				{"vip": true},
			}},
		},
	}

	where, err := BuildWhere(testDialect{}, filter, 1)
	require.NoError(t, err)
	assert.Equal(t, `(("status" = $1) AND ((("age" >= $2) OR ("vip" = $3))))`, where.SQL)
	assert.Equal(t, []interface{}{"active", 21, true}, where.Args)
}

func TestBuildWhereStartIndexContinuesNumbering(t *testing.T) {
	where, err := BuildWhere(testDialect{}, adapter.Filter{"id": 7}, 3)
	require.NoError(t, err)
	assert.Equal(t, `"id" = $3`, where.SQL)
}

func TestBuildWhereRejectsUnknownOperator(t *testing.T) {
	_, err := BuildWhere(testDialect{}, adapter.Filter{"id": adapter.Filter{"$bogus": 1}}, 1)
	assert.Error(t, err)
}

func TestBuildWhereRegexUnsupportedDialect(t *testing.T) {
	_, err := BuildWhere(testDialect{noRegex: true}, adapter.Filter{"name": adapter.Filter{adapter.OpRegex: "^a"}}, 1)
	require.Error(t, err)
	assert.True(t, adapter.IsUnsupported(err))
	assert.ErrorIs(t, err, adapter.ErrOperationNotSupported)
}

func TestBuildSetNumbersPlaceholdersBeforeWhere(t *testing.T) {
	set, args, next, err := BuildSet(testDialect{}, adapter.Record{"name": "B", "age": 30})
	require.NoError(t, err)
	assert.Equal(t, `"age" = $1, "name" = $2`, set)
	assert.Equal(t, []interface{}{30, "B"}, args)
	assert.Equal(t, 3, next)

	where, err := BuildWhere(testDialect{}, adapter.Filter{"id": 1}, next)
	require.NoError(t, err)
	assert.Equal(t, `"id" = $3`, where.SQL)
}

func TestBuildOrderByAndProjection(t *testing.T) {
	orderBy := BuildOrderBy(testDialect{}, []adapter.SortField{
		{Field: "name", Direction: adapter.Ascending},
		{Field: "age", Direction: adapter.Descending},
	})
	assert.Equal(t, `"name" ASC, "age" DESC`, orderBy)

	assert.Equal(t, "*", BuildProjection(testDialect{}, nil))
	assert.Equal(t, `"id", "name"`, BuildProjection(testDialect{}, []string{"id", "name"}))
}
