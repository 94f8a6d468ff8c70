package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
)

// dataOps implements the data operator contract on MongoDB collections.
// Records store the declared fields verbatim; the driver's generated _id is
// internal and stripped from results unless the entity declares it.
type dataOps struct {
	conn *Connection
}

func (d *dataOps) collection(entity string) *mongo.Collection {
	return d.conn.db.Collection(entity)
}

func (d *dataOps) wrap(operation string, err error) error {
	return adapter.WrapError(dbcapabilities.MongoDB, operation, err)
}

func (d *dataOps) pkField(operation, entity string) (string, error) {
	e, _ := d.conn.config.Schema.Entity(entity)
	pk, ok := e.PrimaryKey()
	if !ok {
		return "", adapter.NewValidationError(operation, fmt.Sprintf("entity %q has no primary key", entity))
	}
	return pk.Name, nil
}

// Insert stores one document.
func (d *dataOps) Insert(ctx context.Context, entity string, data adapter.Record) (adapter.Record, error) {
	const op = "insert"
	if err := d.conn.entity(op, entity); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, adapter.NewValidationError(op, "insert data is empty")
	}

	if _, err := d.collection(entity).InsertOne(ctx, bson.M(data)); err != nil {
		return nil, d.wrap(op, err)
	}
	return copyRecord(data), nil
}

// copyRecord detaches a result from the caller's input map, so later caller
// mutation cannot alias the materialized record.
func copyRecord(r adapter.Record) adapter.Record {
	out := make(adapter.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// InsertMany stores a batch of documents.
func (d *dataOps) InsertMany(ctx context.Context, entity string, data []adapter.Record) (int64, error) {
	const op = "insert_many"
	if err := d.conn.entity(op, entity); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, adapter.NewValidationError(op, "insert batch is empty")
	}

	docs := make([]interface{}, len(data))
	for i, record := range data {
		if len(record) == 0 {
			return 0, adapter.NewValidationError(op, "insert batch contains an empty record")
		}
		docs[i] = bson.M(record)
	}

	result, err := d.collection(entity).InsertMany(ctx, docs)
	if err != nil {
		return 0, d.wrap(op, err)
	}
	return int64(len(result.InsertedIDs)), nil
}

// Find returns every document matching the filter.
func (d *dataOps) Find(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) ([]adapter.Record, error) {
	const op = "find"
	if err := d.conn.entity(op, entity); err != nil {
		return nil, err
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return nil, adapter.NewValidationError(op, err.Error())
	}

	cursor, err := d.collection(entity).Find(ctx, translated, findOptions(opts))
	if err != nil {
		return nil, d.wrap(op, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, d.wrap(op, err)
	}

	records := make([]adapter.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, stripObjectID(doc))
	}
	return records, nil
}

// FindOne returns the first matching document or ErrNotFound.
func (d *dataOps) FindOne(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) (adapter.Record, error) {
	limited := adapter.QueryOptions{Limit: 1}
	if opts != nil {
		limited = *opts
		limited.Limit = 1
	}
	records, err := d.Find(ctx, entity, filter, &limited)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, adapter.ErrNotFound
	}
	return records[0], nil
}

// FindByID looks a document up by its primary key value.
func (d *dataOps) FindByID(ctx context.Context, entity string, id interface{}) (adapter.Record, error) {
	const op = "find_by_id"
	if err := d.conn.entity(op, entity); err != nil {
		return nil, err
	}
	pk, err := d.pkField(op, entity)
	if err != nil {
		return nil, err
	}
	return d.FindOne(ctx, entity, adapter.Filter{pk: id}, nil)
}

// Update applies changes to every matching document.
func (d *dataOps) Update(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (int64, error) {
	const op = "update"
	if err := d.conn.entity(op, entity); err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, adapter.NewValidationError(op, "update changes are empty")
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return 0, adapter.NewValidationError(op, err.Error())
	}

	result, err := d.collection(entity).UpdateMany(ctx, translated, bson.M{"$set": bson.M(changes)})
	if err != nil {
		return 0, d.wrap(op, err)
	}
	return result.MatchedCount, nil
}

// UpdateOne updates at most one matching document.
func (d *dataOps) UpdateOne(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (bool, error) {
	const op = "update_one"
	if err := d.conn.entity(op, entity); err != nil {
		return false, err
	}
	if len(changes) == 0 {
		return false, adapter.NewValidationError(op, "update changes are empty")
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return false, adapter.NewValidationError(op, err.Error())
	}

	result, err := d.collection(entity).UpdateOne(ctx, translated, bson.M{"$set": bson.M(changes)})
	if err != nil {
		return false, d.wrap(op, err)
	}
	return result.MatchedCount > 0, nil
}

// UpdateByID updates the document with the given primary key value.
func (d *dataOps) UpdateByID(ctx context.Context, entity string, id interface{}, changes adapter.Record) (bool, error) {
	const op = "update_by_id"
	if err := d.conn.entity(op, entity); err != nil {
		return false, err
	}
	pk, err := d.pkField(op, entity)
	if err != nil {
		return false, err
	}
	matched, err := d.Update(ctx, entity, adapter.Filter{pk: id}, changes)
	if err != nil {
		return false, err
	}
	return matched > 0, nil
}

// Delete removes every matching document.
func (d *dataOps) Delete(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	const op = "delete"
	if err := d.conn.entity(op, entity); err != nil {
		return 0, err
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return 0, adapter.NewValidationError(op, err.Error())
	}

	result, err := d.collection(entity).DeleteMany(ctx, translated)
	if err != nil {
		return 0, d.wrap(op, err)
	}
	return result.DeletedCount, nil
}

// DeleteOne removes at most one matching document.
func (d *dataOps) DeleteOne(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	const op = "delete_one"
	if err := d.conn.entity(op, entity); err != nil {
		return false, err
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return false, adapter.NewValidationError(op, err.Error())
	}

	result, err := d.collection(entity).DeleteOne(ctx, translated)
	if err != nil {
		return false, d.wrap(op, err)
	}
	return result.DeletedCount > 0, nil
}

// DeleteByID removes the document with the given primary key value.
func (d *dataOps) DeleteByID(ctx context.Context, entity string, id interface{}) (bool, error) {
	const op = "delete_by_id"
	if err := d.conn.entity(op, entity); err != nil {
		return false, err
	}
	pk, err := d.pkField(op, entity)
	if err != nil {
		return false, err
	}
	deleted, err := d.Delete(ctx, entity, adapter.Filter{pk: id})
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// Upsert uses the driver's native atomic upsert and returns the resulting
// document.
func (d *dataOps) Upsert(ctx context.Context, entity string, filter adapter.Filter, data adapter.Record) (adapter.Record, error) {
	const op = "upsert"
	if err := d.conn.entity(op, entity); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, adapter.NewValidationError(op, "upsert data is empty")
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return nil, adapter.NewValidationError(op, err.Error())
	}

	_, err = d.collection(entity).UpdateOne(ctx, translated,
		bson.M{"$set": bson.M(data)},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return nil, d.wrap(op, err)
	}

	// Re-read by the union of filter equalities and data so updated filter
	// fields still resolve.
	lookup := adapter.Filter{}
	for k, v := range filter {
		if _, isComparison := v.(map[string]interface{}); isComparison {
			continue
		}
		if k == adapter.OpAnd || k == adapter.OpOr {
			continue
		}
		lookup[k] = v
	}
	for k, v := range data {
		lookup[k] = v
	}
	return d.FindOne(ctx, entity, lookup, nil)
}

// Count returns the number of matching documents.
func (d *dataOps) Count(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	const op = "count"
	if err := d.conn.entity(op, entity); err != nil {
		return 0, err
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return 0, adapter.NewValidationError(op, err.Error())
	}

	count, err := d.collection(entity).CountDocuments(ctx, translated)
	if err != nil {
		return 0, d.wrap(op, err)
	}
	return count, nil
}

// Exists reports whether at least one document matches the filter.
func (d *dataOps) Exists(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	count, err := d.Count(ctx, entity, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Distinct returns the distinct values of one field over matching documents.
func (d *dataOps) Distinct(ctx context.Context, entity string, field string, filter adapter.Filter) ([]interface{}, error) {
	const op = "distinct"
	if err := d.conn.entity(op, entity); err != nil {
		return nil, err
	}

	translated, err := translateFilter(filter)
	if err != nil {
		return nil, adapter.NewValidationError(op, err.Error())
	}

	var values []interface{}
	if err := d.collection(entity).Distinct(ctx, field, translated).Decode(&values); err != nil {
		return nil, d.wrap(op, err)
	}
	if values == nil {
		values = []interface{}{}
	}
	return values, nil
}

func findOptions(opts *adapter.QueryOptions) *options.FindOptionsBuilder {
	builder := options.Find()
	if opts == nil {
		return builder
	}
	if len(opts.Fields) > 0 {
		projection := bson.D{{Key: "_id", Value: 0}}
		for _, f := range opts.Fields {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		builder.SetProjection(projection)
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			sort = append(sort, bson.E{Key: s.Field, Value: int(s.Direction)})
		}
		builder.SetSort(sort)
	}
	if opts.Limit > 0 {
		builder.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder.SetSkip(int64(opts.Offset))
	}
	return builder
}

// stripObjectID removes the driver-generated _id from a result document.
func stripObjectID(doc bson.M) adapter.Record {
	record := make(adapter.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			if _, isGenerated := v.(bson.ObjectID); isGenerated {
				continue
			}
		}
		record[k] = v
	}
	return record
}
