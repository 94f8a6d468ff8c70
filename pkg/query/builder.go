// Package query builds dialect-correct SQL clause fragments from the
// backend-neutral Filter and QueryOptions shapes. Identifier quoting,
// placeholder numbering and value sanitization are delegated to the
// dialect; the recursive flattening of $and/$or/comparison operators into
// clause text and a positional parameter list lives here, once.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
)

// Dialect is the minimal surface the builder needs from a SQL backend.
type Dialect interface {
	// Type returns the canonical database type identifier.
	Type() dbcapabilities.DatabaseID

	// QuoteIdentifier quotes a table, column or index name.
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for a 1-based index
	// ($1, ?, @p1, ...).
	Placeholder(index int) string

	// SanitizeValue converts a value into a form the driver accepts as a
	// statement parameter.
	SanitizeValue(value interface{}) (interface{}, error)

	// RegexMatch returns the regular expression operator, or false when
	// the dialect has none.
	RegexMatch(caseInsensitive bool) (string, bool)

	// LimitClause renders the dialect's LIMIT/OFFSET (or OFFSET/FETCH)
	// syntax; empty when both are zero.
	LimitClause(limit, offset int) string
}

// Where is a rendered WHERE clause body with its positional parameters.
// SQL is empty when the filter matches everything.
type Where struct {
	SQL  string
	Args []interface{}
}

// BuildWhere flattens a filter into a clause body and parameter list. The
// startIndex is the 1-based index of the first placeholder, so WHERE
// parameters can be numbered after SET parameters in combined UPDATE
// statements. Field keys are rendered in sorted order so output is
// deterministic.
func BuildWhere(d Dialect, filter adapter.Filter, startIndex int) (Where, error) {
	b := &builder{dialect: d, nextIndex: startIndex}
	sql, err := b.conjunction(filter)
	if err != nil {
		return Where{}, err
	}
	return Where{SQL: sql, Args: b.args}, nil
}

// BuildSet renders the SET clause body of an UPDATE from the changed
// fields, numbering placeholders from 1. The returned next index is where
// WHERE placeholder numbering must continue.
func BuildSet(d Dialect, changes adapter.Record) (string, []interface{}, int, error) {
	fields := sortedKeys(changes)
	assignments := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	index := 1
	for _, field := range fields {
		value, err := d.SanitizeValue(changes[field])
		if err != nil {
			return "", nil, 0, err
		}
		assignments = append(assignments, fmt.Sprintf("%s = %s", d.QuoteIdentifier(field), d.Placeholder(index)))
		args = append(args, value)
		index++
	}
	return strings.Join(assignments, ", "), args, index, nil
}

// BuildOrderBy renders an ORDER BY clause body from a sort specification;
// empty when there is none.
func BuildOrderBy(d Dialect, sorts []adapter.SortField) string {
	if len(sorts) == 0 {
		return ""
	}
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		direction := "ASC"
		if s.Direction == adapter.Descending {
			direction = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", d.QuoteIdentifier(s.Field), direction)
	}
	return strings.Join(parts, ", ")
}

// BuildProjection renders the column list of a SELECT; "*" when no
// projection was requested.
func BuildProjection(d Dialect, fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = d.QuoteIdentifier(f)
	}
	return strings.Join(quoted, ", ")
}

type builder struct {
	dialect   Dialect
	nextIndex int
	args      []interface{}
}

func (b *builder) placeholder(value interface{}) (string, error) {
	sanitized, err := b.dialect.SanitizeValue(value)
	if err != nil {
		return "", err
	}
	p := b.dialect.Placeholder(b.nextIndex)
	b.nextIndex++
	b.args = append(b.args, sanitized)
	return p, nil
}

// conjunction renders a filter object: every entry AND-ed together.
func (b *builder) conjunction(filter adapter.Filter) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}

	var clauses []string
	for _, key := range sortedKeys(filter) {
		value := filter[key]
		switch key {
		case adapter.OpAnd, adapter.OpOr:
			sub, err := b.composite(key, value)
			if err != nil {
				return "", err
			}
			if sub != "" {
				clauses = append(clauses, sub)
			}
		default:
			clause, err := b.fieldClause(key, value)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		}
	}

	return strings.Join(clauses, " AND "), nil
}

// composite renders $and/$or over a list of sub-filters.
func (b *builder) composite(op string, value interface{}) (string, error) {
	subFilters, err := filterList(op, value)
	if err != nil {
		return "", err
	}

	joiner := " AND "
	if op == adapter.OpOr {
		joiner = " OR "
	}

	var parts []string
	for _, sub := range subFilters {
		rendered, err := b.conjunction(sub)
		if err != nil {
			return "", err
		}
		if rendered != "" {
			parts = append(parts, "("+rendered+")")
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

// fieldClause renders a single field condition: plain equality or a
// comparison sub-object.
func (b *builder) fieldClause(field string, value interface{}) (string, error) {
	column := b.dialect.QuoteIdentifier(field)

	comparison, ok := value.(map[string]interface{})
	if !ok {
		if value == nil {
			return column + " IS NULL", nil
		}
		p, err := b.placeholder(value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", column, p), nil
	}

	var clauses []string
	regexOptions := ""
	if raw, ok := comparison[adapter.OpOptions]; ok {
		s, _ := raw.(string)
		regexOptions = s
	}

	for _, op := range sortedKeys(comparison) {
		operand := comparison[op]
		switch op {
		case adapter.OpOptions:
			// consumed by $regex
		case adapter.OpIn:
			clause, err := b.inClause(column, operand)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		case adapter.OpLike:
			p, err := b.placeholder(operand)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, fmt.Sprintf("%s LIKE %s", column, p))
		case adapter.OpRegex:
			operator, supported := b.dialect.RegexMatch(strings.Contains(regexOptions, "i"))
			if !supported {
				// A missing regex operator is a permanent dialect
				// limitation, not a driver failure.
				return "", adapter.NewUnsupportedOperationError(b.dialect.Type(), "$regex filtering", field)
			}
			p, err := b.placeholder(operand)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, fmt.Sprintf("%s %s %s", column, operator, p))
		case adapter.OpGT, adapter.OpGTE, adapter.OpLT, adapter.OpLTE, adapter.OpNE:
			clause, err := b.comparisonClause(column, op, operand)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, clause)
		default:
			return "", fmt.Errorf("%s: unknown filter operator %q", field, op)
		}
	}

	if len(clauses) == 0 {
		return "", fmt.Errorf("%s: empty comparison object", field)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return "(" + strings.Join(clauses, " AND ") + ")", nil
}

func (b *builder) comparisonClause(column, op string, operand interface{}) (string, error) {
	if op == adapter.OpNE && operand == nil {
		return column + " IS NOT NULL", nil
	}

	var operator string
	switch op {
	case adapter.OpGT:
		operator = ">"
	case adapter.OpGTE:
		operator = ">="
	case adapter.OpLT:
		operator = "<"
	case adapter.OpLTE:
		operator = "<="
	case adapter.OpNE:
		operator = "<>"
	}

	p, err := b.placeholder(operand)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", column, operator, p), nil
}

func (b *builder) inClause(column string, operand interface{}) (string, error) {
	values, ok := valueList(operand)
	if !ok {
		return "", fmt.Errorf("%s: $in requires a list operand", column)
	}
	if len(values) == 0 {
		// No value can match an empty $in list.
		return "1 = 0", nil
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		p, err := b.placeholder(v)
		if err != nil {
			return "", err
		}
		placeholders[i] = p
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// filterList normalizes the operand of $and/$or to a list of filters.
func filterList(op string, value interface{}) ([]adapter.Filter, error) {
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

// valueList normalizes an $in operand to a value slice.
func valueList(operand interface{}) ([]interface{}, bool) {
	switch list := operand.(type) {
	case []interface{}:
		return list, true
	case []string:
		values := make([]interface{}, len(list))
		for i, v := range list {
			values[i] = v
		}
		return values, true
	case []int:
		values := make([]interface{}, len(list))
		for i, v := range list {
			values[i] = v
		}
		return values, true
	case []int64:
		values := make([]interface{}, len(list))
		for i, v := range list {
			values[i] = v
		}
		return values, true
	case []float64:
		values := make([]interface{}, len(list))
		for i, v := range list {
			values[i] = v
		}
		return values, true
	default:
		return nil, false
	}
}
