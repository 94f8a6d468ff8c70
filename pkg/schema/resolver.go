package schema

import "fmt"

// visit marks for the dependency walk.
type visitMark int

const (
	unvisited visitMark = iota
	inProgress
	done
)

// CycleWarning records a foreign-key back-edge found during resolution.
// The edge is skipped so that table creation can proceed; the cyclic
// constraint may need deferred or post-creation application.
type CycleWarning struct {
	From string
	To   string
}

func (w CycleWarning) String() string {
	return fmt.Sprintf("circular foreign key dependency: %s -> %s (edge skipped)", w.From, w.To)
}

// ResolveOrder produces a creation order for the requested entities such
// that every referenced entity appears before the entity that references
// it. Entities outside the requested set are never visited. Back-edges
// (circular dependencies) are reported as warnings and skipped, never
// fatal. The output is deterministic given the schema's declared entity
// order.
func (s *Schema) ResolveOrder(requested []string) ([]string, []CycleWarning) {
	inSet := make(map[string]bool, len(requested))
	for _, name := range requested {
		inSet[name] = true
	}

	marks := make(map[string]visitMark, len(requested))
	order := make([]string, 0, len(requested))
	var warnings []CycleWarning

	var visit func(name string)
	visit = func(name string) {
		marks[name] = inProgress
		entity, ok := s.Entity(name)
		if ok {
			for _, ref := range entity.References() {
				if !inSet[ref] {
					continue
				}
				switch marks[ref] {
				case unvisited:
					visit(ref)
				case inProgress:
					warnings = append(warnings, CycleWarning{From: name, To: ref})
				}
			}
		}
		marks[name] = done
		order = append(order, name)
	}

	// Walk in the schema's declared order first so output is stable,
	// then any requested names not present in the schema.
	for _, e := range s.Entities {
		if inSet[e.Name] && marks[e.Name] == unvisited {
			visit(e.Name)
		}
	}
	for _, name := range requested {
		if marks[name] == unvisited {
			visit(name)
		}
	}

	return order, warnings
}
