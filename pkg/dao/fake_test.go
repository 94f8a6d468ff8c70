package dao

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omnidao/omnidao/pkg/adapter"
	"github.com/omnidao/omnidao/pkg/dbcapabilities"
	"github.com/omnidao/omnidao/pkg/schema"
)

// fakeAdapter is an in-memory backend for exercising the DAO layer. The
// store lives on the adapter, not the connection, so data survives
// reconnects the way it does against a real server.
type fakeAdapter struct {
	mu          sync.Mutex
	store       *fakeStore
	connectErrs []error
	connects    int
	conns       []*fakeConn
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{store: newFakeStore()}
}

func (a *fakeAdapter) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.SQLite
}

func (a *fakeAdapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.SQLite)
}

func (a *fakeAdapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.connects++
	if len(a.connectErrs) > 0 {
		err := a.connectErrs[0]
		a.connectErrs = a.connectErrs[1:]
		return nil, err
	}

	conn := &fakeConn{
		adapter:   a,
		config:    config,
		id:        fmt.Sprintf("fake-%d", a.connects),
		connected: true,
	}
	a.conns = append(a.conns, conn)
	return conn, nil
}

func (a *fakeAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

type fakeConn struct {
	adapter *fakeAdapter
	config  adapter.ConnectionConfig
	id      string

	mu        sync.Mutex
	connected bool
}

func (c *fakeConn) ID() string                        { return c.id }
func (c *fakeConn) Type() dbcapabilities.DatabaseID   { return dbcapabilities.SQLite }
func (c *fakeConn) Raw() interface{}                  { return c.adapter.store }
func (c *fakeConn) Config() adapter.ConnectionConfig  { return c.config }
func (c *fakeConn) Adapter() adapter.DatabaseAdapter  { return c.adapter }
func (c *fakeConn) DataOperations() adapter.DataOperator {
	return &fakeDataOps{conn: c}
}
func (c *fakeConn) SchemaOperations() adapter.SchemaOperator {
	return &fakeSchemaOps{conn: c}
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) markDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeConn) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return adapter.ErrConnectionClosed
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeConn) BeginTransaction(ctx context.Context) (adapter.Transaction, error) {
	return &fakeTx{active: true}, nil
}

type fakeTx struct {
	active bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if !t.active {
		return adapter.NewTransactionStateError("commit", "already finalized")
	}
	t.active = false
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.active {
		return adapter.NewTransactionStateError("rollback", "already finalized")
	}
	t.active = false
	return nil
}

func (t *fakeTx) IsActive() bool { return t.active }

// fakeStore holds tables and rows, plus injectable transient failures.
type fakeStore struct {
	mu      sync.Mutex
	tables  map[string][]adapter.Record
	created map[string]bool
	autoID  int64

	// findFailures makes the next N Find calls fail with a transient
	// connection error, for retry-path tests.
	findFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:  make(map[string][]adapter.Record),
		created: make(map[string]bool),
	}
}

func (s *fakeStore) seed(entity string, records ...adapter.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[entity] = true
	s.tables[entity] = append(s.tables[entity], records...)
}

func (s *fakeStore) rows(entity string) []adapter.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adapter.Record(nil), s.tables[entity]...)
}

func (s *fakeStore) tableCreated(entity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[entity]
}

func matchesFilter(record adapter.Record, filter adapter.Filter) bool {
	for field, want := range filter {
		if record[field] != want {
			return false
		}
	}
	return true
}

type fakeDataOps struct {
	conn *fakeConn
}

func (o *fakeDataOps) store() *fakeStore { return o.conn.adapter.store }

func (o *fakeDataOps) entityPK(entity string) (schema.Field, bool) {
	if o.conn.config.Schema == nil {
		return schema.Field{}, false
	}
	e, ok := o.conn.config.Schema.Entity(entity)
	if !ok {
		return schema.Field{}, false
	}
	return e.PrimaryKey()
}

func (o *fakeDataOps) Insert(ctx context.Context, entity string, data adapter.Record) (adapter.Record, error) {
	if len(data) == 0 {
		return nil, adapter.NewValidationError("insert", "insert data is empty")
	}
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	record := make(adapter.Record, len(data)+1)
	for k, v := range data {
		record[k] = v
	}
	if pk, ok := o.entityPK(entity); ok && pk.AutoIncrement {
		if _, has := record[pk.Name]; !has {
			s.autoID++
			record[pk.Name] = s.autoID
		}
	}
	s.tables[entity] = append(s.tables[entity], record)
	return record, nil
}

func (o *fakeDataOps) InsertMany(ctx context.Context, entity string, data []adapter.Record) (int64, error) {
	if len(data) == 0 {
		return 0, adapter.NewValidationError("insert_many", "insert batch is empty")
	}
	for _, record := range data {
		if _, err := o.Insert(ctx, entity, record); err != nil {
			return 0, err
		}
	}
	return int64(len(data)), nil
}

func (o *fakeDataOps) Find(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) ([]adapter.Record, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findFailures > 0 {
		s.findFailures--
		return nil, adapter.NewConnectionError(dbcapabilities.SQLite, "", 0, fmt.Errorf("connection reset by peer"))
	}

	out := []adapter.Record{}
	for _, record := range s.tables[entity] {
		if matchesFilter(record, filter) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (o *fakeDataOps) FindOne(ctx context.Context, entity string, filter adapter.Filter, opts *adapter.QueryOptions) (adapter.Record, error) {
	rows, err := o.Find(ctx, entity, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, adapter.ErrNotFound
	}
	return rows[0], nil
}

func (o *fakeDataOps) FindByID(ctx context.Context, entity string, id interface{}) (adapter.Record, error) {
	pk, ok := o.entityPK(entity)
	if !ok {
		return nil, adapter.NewValidationError("find_by_id", "entity has no primary key")
	}
	return o.FindOne(ctx, entity, adapter.Filter{pk.Name: id}, nil)
}

func (o *fakeDataOps) Update(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (int64, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, record := range s.tables[entity] {
		if matchesFilter(record, filter) {
			for k, v := range changes {
				record[k] = v
			}
			affected++
		}
	}
	return affected, nil
}

func (o *fakeDataOps) UpdateOne(ctx context.Context, entity string, filter adapter.Filter, changes adapter.Record) (bool, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.tables[entity] {
		if matchesFilter(record, filter) {
			for k, v := range changes {
				record[k] = v
			}
			return true, nil
		}
	}
	return false, nil
}

func (o *fakeDataOps) UpdateByID(ctx context.Context, entity string, id interface{}, changes adapter.Record) (bool, error) {
	pk, ok := o.entityPK(entity)
	if !ok {
		return false, adapter.NewValidationError("update_by_id", "entity has no primary key")
	}
	return o.UpdateOne(ctx, entity, adapter.Filter{pk.Name: id}, changes)
}

func (o *fakeDataOps) Delete(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[entity][:0]
	var deleted int64
	for _, record := range s.tables[entity] {
		if matchesFilter(record, filter) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.tables[entity] = kept
	return deleted, nil
}

func (o *fakeDataOps) DeleteOne(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.tables[entity] {
		if matchesFilter(record, filter) {
			s.tables[entity] = append(s.tables[entity][:i], s.tables[entity][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (o *fakeDataOps) DeleteByID(ctx context.Context, entity string, id interface{}) (bool, error) {
	pk, ok := o.entityPK(entity)
	if !ok {
		return false, adapter.NewValidationError("delete_by_id", "entity has no primary key")
	}
	return o.DeleteOne(ctx, entity, adapter.Filter{pk.Name: id})
}

func (o *fakeDataOps) Upsert(ctx context.Context, entity string, filter adapter.Filter, data adapter.Record) (adapter.Record, error) {
	existing, err := o.FindOne(ctx, entity, filter, nil)
	if err != nil && !adapter.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		s := o.store()
		s.mu.Lock()
		for k, v := range data {
			existing[k] = v
		}
		s.mu.Unlock()
		return existing, nil
	}

	merged := make(adapter.Record, len(filter)+len(data))
	for k, v := range filter {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	return o.Insert(ctx, entity, merged)
}

func (o *fakeDataOps) Count(ctx context.Context, entity string, filter adapter.Filter) (int64, error) {
	rows, err := o.Find(ctx, entity, filter, nil)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (o *fakeDataOps) Exists(ctx context.Context, entity string, filter adapter.Filter) (bool, error) {
	count, err := o.Count(ctx, entity, filter)
	return count > 0, err
}

func (o *fakeDataOps) Distinct(ctx context.Context, entity string, field string, filter adapter.Filter) ([]interface{}, error) {
	rows, err := o.Find(ctx, entity, filter, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[interface{}]bool)
	values := []interface{}{}
	for _, record := range rows {
		v := record[field]
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	return values, nil
}

type fakeSchemaOps struct {
	conn *fakeConn
}

func (o *fakeSchemaOps) store() *fakeStore { return o.conn.adapter.store }

func (o *fakeSchemaOps) CreateTable(ctx context.Context, entity string) error {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[entity] = true
	return nil
}

func (o *fakeSchemaOps) AddField(ctx context.Context, entity string, field schema.Field) error {
	return nil
}

func (o *fakeSchemaOps) DropTable(ctx context.Context, entity string) error {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.created, entity)
	delete(s.tables, entity)
	return nil
}

func (o *fakeSchemaOps) TruncateTable(ctx context.Context, entity string) error {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[entity] = nil
	return nil
}

func (o *fakeSchemaOps) CreateIndex(ctx context.Context, entity string, index schema.Index) error {
	return nil
}

func (o *fakeSchemaOps) DropIndex(ctx context.Context, entity string, indexName string) error {
	return nil
}

func (o *fakeSchemaOps) TableExists(ctx context.Context, entity string) (bool, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[entity], nil
}

func (o *fakeSchemaOps) ListTables(ctx context.Context) ([]string, error) {
	s := o.store()
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.created))
	for name := range s.created {
		names = append(names, name)
	}
	return names, nil
}

// newTestContext wires an isolated registry, fake adapter and schema, with
// instant backoff.
func newTestContext(opts ...Option) (*Context, *fakeAdapter) {
	fake := newFakeAdapter()
	registry := adapter.NewRegistry()
	registry.Register(fake)

	base := []Option{WithSleep(func(time.Duration) {})}
	ctx := NewContext(registry, append(base, opts...)...)
	return ctx, fake
}

func testUserSchema() *schema.Schema {
	return &schema.Schema{
		Name:    "app",
		Version: "1.0.0",
		Entities: []schema.Entity{
			{
				Name: "users",
				Fields: []schema.Field{
					{Name: "id", Type: schema.TypeBigInt, PrimaryKey: true, AutoIncrement: true},
					{Name: "email", Type: schema.TypeString, Unique: true, Required: true},
					{Name: "name", Type: schema.TypeString},
				},
				Indexes: []schema.Index{
					{Name: "idx_users_email", Fields: []string{"email"}, Unique: true},
				},
			},
			{
				Name: "posts",
				Fields: []schema.Field{
					{Name: "id", Type: schema.TypeBigInt, PrimaryKey: true, AutoIncrement: true},
					{Name: "user_id", Type: schema.TypeBigInt, Required: true, Reference: &schema.Reference{Entity: "users", Field: "id"}},
					{Name: "title", Type: schema.TypeString},
				},
			},
		},
	}
}

func testConfig() adapter.ConnectionConfig {
	return adapter.ConnectionConfig{
		ConnectionType: "sqlite",
		DatabaseName:   "app.db",
	}
}

func mustDAO(c *Context, s *schema.Schema) (*DAO, error) {
	if err := c.RegisterSchema(s, testConfig()); err != nil {
		return nil, err
	}
	return c.DAO(s.Name)
}
