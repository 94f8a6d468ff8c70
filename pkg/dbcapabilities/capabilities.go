package dbcapabilities

import "strings"

// DatabaseID is the canonical identifier for a database technology supported
// by OmniDAO. Use these constants to look up capability information.
type DatabaseID string

const (
	// Relational SQL
	PostgreSQL DatabaseID = "postgres"
	MySQL      DatabaseID = "mysql"
	SQLServer  DatabaseID = "mssql"
	SQLite     DatabaseID = "sqlite"

	// Document stores
	MongoDB DatabaseID = "mongodb"
)

// DataParadigm enumerates the primary data storage paradigms a database supports.
type DataParadigm string

const (
	ParadigmRelational DataParadigm = "relational" // Tables, schemas, SQL
	ParadigmDocument   DataParadigm = "document"   // Collections, documents
)

// PlaceholderStyle describes how a SQL dialect numbers statement parameters.
type PlaceholderStyle string

const (
	PlaceholderDollar   PlaceholderStyle = "dollar"   // $1, $2 (PostgreSQL)
	PlaceholderQuestion PlaceholderStyle = "question" // ?, ? (MySQL, SQLite)
	PlaceholderAtP      PlaceholderStyle = "atp"      // @p1, @p2 (SQL Server)
	PlaceholderNone     PlaceholderStyle = "none"     // non-SQL backends
)

// Capability describes what a database supports in a way that the adapter
// layer can consume uniformly.
type Capability struct {
	// Human-friendly vendor or product name, e.g., "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see DatabaseID constants).
	ID DatabaseID `json:"id"`

	// Primary data storage paradigms supported.
	Paradigms []DataParadigm `json:"paradigms"`

	// Placeholder numbering style for parameterized statements.
	Placeholders PlaceholderStyle `json:"placeholders"`

	// Identifier quote character pair, e.g. `"` `"`, "`" "`", "[" "]".
	QuoteOpen  string `json:"quoteOpen"`
	QuoteClose string `json:"quoteClose"`

	// Whether INSERT ... RETURNING (or equivalent) is available for
	// materializing inserted rows in a single statement.
	SupportsReturning bool `json:"supportsReturning"`

	// Whether a native atomic upsert clause is available
	// (ON CONFLICT / ON DUPLICATE KEY). Backends without one fall back to
	// a non-atomic read-then-write upsert.
	SupportsNativeUpsert bool `json:"supportsNativeUpsert"`

	// Whether foreign key constraints must be declared inline in
	// CREATE TABLE because ALTER TABLE ... ADD CONSTRAINT is unavailable
	// (file-based engines such as SQLite).
	InlineForeignKeysOnly bool `json:"inlineForeignKeysOnly"`

	// Whether OFFSET/FETCH paging is rejected without an ORDER BY clause
	// (SQL Server). The engine supplies a constant ordering when the
	// entity gives it nothing to sort by.
	PagingRequiresSort bool `json:"pagingRequiresSort,omitempty"`

	// SQL regular expression operator, empty if the dialect has none.
	RegexOperator string `json:"regexOperator,omitempty"`

	// Common aliases (directory names, drivers, env labels) that map to
	// this database.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database ID.
var All = map[DatabaseID]Capability{
	PostgreSQL: {
		Name:                 "PostgreSQL",
		ID:                   PostgreSQL,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Placeholders:         PlaceholderDollar,
		QuoteOpen:            `"`,
		QuoteClose:           `"`,
		SupportsReturning:    true,
		SupportsNativeUpsert: true,
		RegexOperator:        "~",
		Aliases:              []string{"postgresql", "pgsql", "pg"},
	},
	MySQL: {
		Name:                 "MySQL",
		ID:                   MySQL,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Placeholders:         PlaceholderQuestion,
		QuoteOpen:            "`",
		QuoteClose:           "`",
		SupportsReturning:    false,
		SupportsNativeUpsert: true,
		RegexOperator:        "REGEXP",
		Aliases:              []string{"mariadb"},
	},
	SQLServer: {
		Name:                 "Microsoft SQL Server",
		ID:                   SQLServer,
		Paradigms:            []DataParadigm{ParadigmRelational},
		Placeholders:         PlaceholderAtP,
		QuoteOpen:            "[",
		QuoteClose:           "]",
		SupportsReturning:    true, // OUTPUT INSERTED.*
		SupportsNativeUpsert: false,
		PagingRequiresSort:   true,
		Aliases:              []string{"sqlserver", "microsoft-sql"},
	},
	SQLite: {
		Name:                  "SQLite",
		ID:                    SQLite,
		Paradigms:             []DataParadigm{ParadigmRelational},
		Placeholders:          PlaceholderQuestion,
		QuoteOpen:             `"`,
		QuoteClose:            `"`,
		SupportsReturning:     true,
		SupportsNativeUpsert:  true,
		InlineForeignKeysOnly: true,
		Aliases:               []string{"sqlite3", "file"},
	},
	MongoDB: {
		Name:                 "MongoDB",
		ID:                   MongoDB,
		Paradigms:            []DataParadigm{ParadigmDocument},
		Placeholders:         PlaceholderNone,
		SupportsNativeUpsert: true,
		Aliases:              []string{"mongo", "documentdb"},
	},
}

// Get returns the capability entry for the given database ID.
func Get(id DatabaseID) (Capability, bool) {
	cap, ok := All[id]
	return cap, ok
}

// MustGet returns the capability entry or panics if it does not exist.
// Use only with the package constants.
func MustGet(id DatabaseID) Capability {
	cap, ok := All[id]
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return cap
}

// ParseID resolves a database name or alias to its canonical ID.
func ParseID(name string) (DatabaseID, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if _, ok := All[DatabaseID(normalized)]; ok {
		return DatabaseID(normalized), true
	}
	for id, cap := range All {
		for _, alias := range cap.Aliases {
			if alias == normalized {
				return id, true
			}
		}
	}
	return "", false
}

// IDs returns all canonical database IDs.
func IDs() []DatabaseID {
	ids := make([]DatabaseID, 0, len(All))
	for id := range All {
		ids = append(ids, id)
	}
	return ids
}

// SupportsParadigm reports whether the database supports the given paradigm.
func (c Capability) SupportsParadigm(p DataParadigm) bool {
	for _, paradigm := range c.Paradigms {
		if paradigm == p {
			return true
		}
	}
	return false
}
