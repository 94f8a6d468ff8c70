package mongodb

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omnidao/omnidao/pkg/adapter"
)

// translateFilter converts the backend-neutral filter shape to BSON. Most
// operators map one-to-one; $like is rewritten as an anchored regular
// expression with SQL wildcards translated.
func translateFilter(filter adapter.Filter) (bson.M, error) {
	out := bson.M{}
	for key, value := range filter {
		switch key {
		case adapter.OpAnd, adapter.OpOr:
			subFilters, err := filterSlice(key, value)
			if err != nil {
				return nil, err
			}
			translated := make([]bson.M, 0, len(subFilters))
			for _, sub := range subFilters {
				t, err := translateFilter(sub)
				if err != nil {
					return nil, err
				}
				translated = append(translated, t)
			}
			out[key] = translated
		default:
			condition, err := translateCondition(key, value)
			if err != nil {
				return nil, err
			}
			out[key] = condition
		}
	}
	return out, nil
}

func translateCondition(field string, value interface{}) (interface{}, error) {
	comparison, ok := value.(map[string]interface{})
	if !ok {
		return value, nil
	}

	out := bson.M{}
	for op, operand := range comparison {
		switch op {
		case adapter.OpIn, adapter.OpGT, adapter.OpGTE, adapter.OpLT, adapter.OpLTE, adapter.OpNE, adapter.OpRegex, adapter.OpOptions:
			out[op] = operand
		case adapter.OpLike:
			pattern, ok := operand.(string)
			if !ok {
				return nil, fmt.Errorf("%s: $like requires a string operand", field)
			}
			out[adapter.OpRegex] = likeToRegex(pattern)
		default:
			return nil, fmt.Errorf("%s: unknown filter operator %q", field, op)
		}
	}
	return out, nil
}

// likeToRegex converts a SQL LIKE pattern to an anchored regular expression:
// % matches any run, _ matches one character, everything else is literal.
func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		case '.', '^', '$', '*', '+', '?', '(', ')', '[', ']', '{', '}', '\\', '|':
			b.WriteString("\\")
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	return b.String()
}

func filterSlice(op string, value interface{}) ([]adapter.Filter, error) {
	switch list := value.(type) {
	case []adapter.Filter:
		return list, nil
	case []interface{}:
		filters := make([]adapter.Filter, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s: list elements must be filter objects", op)
			}
			filters = append(filters, m)
		}
		return filters, nil
	default:
		return nil, fmt.Errorf("%s requires a list of filter objects", op)
	}
}
