package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

// schemaOps implements the schema operator contract on MongoDB. Collections
// are schemaless, so table-shaped DDL degrades gracefully: creating an
// entity creates the collection plus unique indexes for the primary key and
// unique fields, and adding a field is a no-op.
type schemaOps struct {
	conn *Connection
}

func (s *schemaOps) wrap(operation string, err error) error {
	return adapter.WrapError(dbcapabilities.MongoDB, operation, err)
}

// CreateTable creates the collection and its uniqueness indexes. Foreign
// keys have no MongoDB equivalent and are ignored; referential order is
// still honored by the caller's dependency resolution.
func (s *schemaOps) CreateTable(ctx context.Context, entityName string) error {
	const op = "create_table"
	if err := s.conn.entity(op, entityName); err != nil {
		return err
	}
	entity, _ := s.conn.config.Schema.Entity(entityName)

	if err := s.conn.db.CreateCollection(ctx, entityName); err != nil {
		return s.wrap(op, err)
	}

	collection := s.conn.db.Collection(entityName)
	for _, field := range entity.Fields {
		if !field.PrimaryKey && !field.Unique {
			continue
		}
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: field.Name, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := collection.Indexes().CreateOne(ctx, model); err != nil {
			return s.wrap(op, err)
		}
	}
	return nil
}

// AddField is a no-op: documents gain fields on write.
func (s *schemaOps) AddField(ctx context.Context, entityName string, field schema.Field) error {
	return s.conn.entity("add_field", entityName)
}

// DropTable drops the collection. Dropping a missing collection is a no-op
// in MongoDB already.
func (s *schemaOps) DropTable(ctx context.Context, entityName string) error {
	if err := s.conn.db.Collection(entityName).Drop(ctx); err != nil {
		return s.wrap("drop_table", err)
	}
	return nil
}

// TruncateTable removes every document but keeps the collection and its
// indexes.
func (s *schemaOps) TruncateTable(ctx context.Context, entityName string) error {
	if _, err := s.conn.db.Collection(entityName).DeleteMany(ctx, bson.M{}); err != nil {
		return s.wrap("truncate_table", err)
	}
	return nil
}

// CreateIndex creates a secondary index from its definition.
func (s *schemaOps) CreateIndex(ctx context.Context, entityName string, index schema.Index) error {
	const op = "create_index"
	if err := s.conn.entity(op, entityName); err != nil {
		return err
	}
	if index.Name == "" || len(index.Fields) == 0 {
		return adapter.NewValidationError(op, "index needs a name and at least one field")
	}

	keys := bson.D{}
	for _, f := range index.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	model := mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(index.Name).SetUnique(index.Unique),
	}
	if _, err := s.conn.db.Collection(entityName).Indexes().CreateOne(ctx, model); err != nil {
		return s.wrap(op, err)
	}
	return nil
}

// DropIndex removes a secondary index.
func (s *schemaOps) DropIndex(ctx context.Context, entityName string, indexName string) error {
	if err := s.conn.db.Collection(entityName).Indexes().DropOne(ctx, indexName); err != nil {
		return s.wrap("drop_index", err)
	}
	return nil
}

// TableExists reports whether the collection exists.
func (s *schemaOps) TableExists(ctx context.Context, entityName string) (bool, error) {
	names, err := s.conn.db.ListCollectionNames(ctx, bson.M{"name": entityName})
	if err != nil {
		return false, s.wrap("table_exists", err)
	}
	return len(names) > 0, nil
}

// ListTables returns the names of all collections in the database.
func (s *schemaOps) ListTables(ctx context.Context) ([]string, error) {
	names, err := s.conn.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, s.wrap("list_tables", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
