package adapter

// Record is a single row or document, keyed by field name.
type Record = map[string]interface{}

// Filter is the backend-neutral predicate structure used by find, update and
// delete operations. Keys are field names or logical operator keys; values
// are literals for equality or comparison sub-objects. Composition via $and
// and $or is recursive.
//
//	Filter{"status": "active"}
//	Filter{"age": Filter{OpGTE: 21}}
//	Filter{OpOr: []Filter{{"name": Filter{OpLike: "a%"}}, {"id": Filter{OpIn: []any{1, 2}}}}}
type Filter = map[string]interface{}

// Filter operator keys. These are the wire-level contract and must be
// reproduced exactly by every backend implementation.
const (
	OpAnd     = "$and"
	OpOr      = "$or"
	OpIn      = "$in"
	OpLike    = "$like"
	OpRegex   = "$regex"
	OpOptions = "$options" // regex options, e.g. "i"
	OpGT      = "$gt"
	OpGTE     = "$gte"
	OpLT      = "$lt"
	OpLTE     = "$lte"
	OpNE      = "$ne"
)

// SortDirection orders a sort field ascending or descending.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// SortField pairs a field name with a direction.
type SortField struct {
	Field     string
	Direction SortDirection
}

// QueryOptions carries projection, ordering and paging configuration for
// read operations. Pure configuration, no identity; a nil *QueryOptions is
// valid everywhere and means "no projection, natural order, no paging".
type QueryOptions struct {
	// Fields projects the result to the named fields; empty means all.
	Fields []string

	// Sort specifies ordering, applied in slice order.
	Sort []SortField

	// Limit caps the number of returned records; zero means no limit.
	Limit int

	// Offset skips the first N records; zero means none.
	Offset int
}

// ExecResult is the normalized result of a raw statement execution. Every
// backend populates the same three fields so callers never branch on
// driver-specific result shapes.
type ExecResult struct {
	Rows         []Record
	RowsAffected int64
	LastInsertID int64
}
