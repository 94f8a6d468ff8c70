package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omnidao/omnidao/pkg/adapter"
)

func TestTranslateFilterEquality(t *testing.T) {
	out, err := translateFilter(adapter.Filter{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": "active"}, out)
}

func TestTranslateFilterComparisonOperators(t *testing.T) {
	out, err := translateFilter(adapter.Filter{
		"age": adapter.Filter{adapter.OpGTE: 21, adapter.OpLT: 65},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"age": bson.M{"$gte": 21, "$lt": 65}}, out)
}

func TestTranslateFilterInAndNe(t *testing.T) {
	out, err := translateFilter(adapter.Filter{
		"id":     adapter.Filter{adapter.OpIn: []interface{}{1, 2, 3}},
		"status": adapter.Filter{adapter.OpNE: "gone"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"id":     bson.M{"$in": []interface{}{1, 2, 3}},
		"status": bson.M{"$ne": "gone"},
	}, out)
}

func TestTranslateFilterComposition(t *testing.T) {
	out, err := translateFilter(adapter.Filter{
		adapter.OpOr: []adapter.Filter{
			{"name": "A"},
			{"age": adapter.Filter{adapter.OpGT: 30}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{
		"$or": []bson.M{
			{"name": "A"},
			{"age": bson.M{"$gt": 30}},
		},
	}, out)
}

func TestTranslateFilterLikeBecomesAnchoredRegex(t *testing.T) {
	out, err := translateFilter(adapter.Filter{
		"name": adapter.Filter{adapter.OpLike: "a%"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "^a.*$"}}, out)
}

func TestTranslateFilterRegexWithOptionsPassesThrough(t *testing.T) {
	out, err := translateFilter(adapter.Filter{
		"name": adapter.Filter{adapter.OpRegex: "^a", adapter.OpOptions: "i"},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"name": bson.M{"$regex": "^a", "$options": "i"}}, out)
}

func TestTranslateFilterRejectsUnknownOperator(t *testing.T) {
	_, err := translateFilter(adapter.Filter{"x": adapter.Filter{"$bogus": 1}})
	assert.Error(t, err)
}

func TestTranslateFilterRejectsNonListComposition(t *testing.T) {
	_, err := translateFilter(adapter.Filter{adapter.OpAnd: "not a list"})
	assert.Error(t, err)
}

func TestLikeToRegex(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"a%", "^a.*$"},
		{"%son", "^.*son$"},
		{"a_c", "^a.c$"},
		{"100%", "^100.*$"},
		{"a.b", `^a\.b$`},
		{"(x)", `^\(x\)$`},
		{`back\slash`, `^back\\slash$`},
		{"plain", "^plain$"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, likeToRegex(tt.pattern), tt.pattern)
	}
}
