package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityWithFK(name string, refs ...string) Entity {
	e := Entity{
		Name:   name,
		Fields: []Field{{Name: "id", Type: TypeInteger, PrimaryKey: true}},
	}
	for _, ref := range refs {
		e.Fields = append(e.Fields, Field{
			Name:      ref + "_id",
			Type:      TypeInteger,
			Reference: &Reference{Entity: ref, Field: "id"},
		})
	}
	return e
}

func TestResolveOrderPutsReferencedFirst(t *testing.T) {
	s := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("a", "b"),
			entityWithFK("b"),
		},
	}

	order, warnings := s.ResolveOrder([]string{"a", "b"})
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestResolveOrderChain(t *testing.T) {
	s := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("comments", "posts"),
			entityWithFK("posts", "users"),
			entityWithFK("users"),
		},
	}

	order, warnings := s.ResolveOrder(s.EntityNames())
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"users", "posts", "comments"}, order)
}

func TestResolveOrderCycleWarnsAndTerminates(t *testing.T) {
	s := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("a", "b"),
			entityWithFK("b", "a"),
		},
	}

	order, warnings := s.ResolveOrder([]string{"a", "b"})

	require.Len(t, warnings, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, order)
	assert.Contains(t, warnings[0].String(), "circular")
}

func TestResolveOrderIgnoresEntitiesOutsideRequestedSet(t *testing.T) {
	s := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("a", "b"),
			entityWithFK("b"),
		},
	}

	order, warnings := s.ResolveOrder([]string{"a"})
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"a"}, order)
}

func TestResolveOrderDeterministic(t *testing.T) {
	s := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("x"),
			entityWithFK("y"),
			entityWithFK("z"),
		},
	}

	first, _ := s.ResolveOrder(s.EntityNames())
	for i := 0; i < 10; i++ {
		again, _ := s.ResolveOrder(s.EntityNames())
		assert.Equal(t, first, again)
	}
}

func TestSchemaValidate(t *testing.T) {
	valid := &Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []Entity{
			entityWithFK("users"),
			entityWithFK("posts", "users"),
		},
	}
	assert.NoError(t, valid.Validate())

	unknownRef := &Schema{
		Name:     "app",
		Version:  "1.0.0",
		Entities: []Entity{entityWithFK("posts", "users")},
	}
	assert.Error(t, unknownRef.Validate())

	noVersion := &Schema{Name: "app", Entities: []Entity{entityWithFK("users")}}
	assert.Error(t, noVersion.Validate())

	duplicate := &Schema{
		Name:     "app",
		Version:  "1.0.0",
		Entities: []Entity{entityWithFK("users"), entityWithFK("users")},
	}
	assert.Error(t, duplicate.Validate())
}
