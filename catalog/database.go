package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
	"mit.edu/dsg/godbopt/common"
	"mit.edu/dsg/godbopt/config"
)

// Database is a named collection of tables guarded by a reader/writer lock.
// Schema changes hold the write lock; readers that need a stable view of
// several tables hold the read lock. Single lookups are safe without either.
type Database interface {
	ID() common.ObjectID
	FullName() string

	ReadLock(ctx context.Context) error
	ReadUnlock()
	WriteLock(ctx context.Context, owner LockOwner) error
	TryWriteLock(owner LockOwner, timeout time.Duration) bool
	WriteLockOrError(owner LockOwner) error
	WriteUnlock(owner LockOwner)
	IsWriteLockHeldBy(owner LockOwner) bool

	IsTableExist(name string) bool
	Table(name string) (*Table, bool)
	TableByID(oid common.ObjectID) (*Table, bool)
	TableOrError(name string) (*Table, error)

	// TableVersion returns the schema version of the table. It changes every
	// time the table's definition does. The second result is false if no such
	// table exists.
	TableVersion(oid common.ObjectID) (uint64, bool)
}

// TableLister is implemented by databases that can enumerate their tables.
type TableLister interface {
	Tables() []*Table
	// TablesOnIDOrder returns the tables sorted by ObjectID.
	TablesOnIDOrder() []*Table
	TableNames() []string
}

// DataSource is a catalog of databases, e.g. the local store or an external
// system.
type DataSource interface {
	Type() string
	ID() common.ObjectID
	Name() string
	DatabaseNames() []string
	Database(name string) (Database, bool)
	DatabaseByID(id common.ObjectID) (Database, bool)
	DatabaseOrError(name string) (Database, error)
}

// LocalDatabase is a Database backed by a GoDB Catalog.
type LocalDatabase struct {
	dbLocks
	id common.ObjectID

	// mu protects the catalog and the btree. It is held only for the duration
	// of a single lookup or update.
	mu       sync.RWMutex
	catalog  *Catalog
	provider PersistenceProvider
	byID     *btree.BTreeG[*Table]

	versions    *xsync.MapOf[common.ObjectID, uint64]
	lastVersion atomic.Uint64
}

var (
	_ Database    = (*LocalDatabase)(nil)
	_ TableLister = (*LocalDatabase)(nil)
)

// NewLocalDatabase opens the database whose catalog is stored in provider.
func NewLocalDatabase(id common.ObjectID, name string, provider PersistenceProvider, cfg config.CatalogConfig) (*LocalDatabase, error) {
	cat, err := NewCatalog(provider)
	if err != nil {
		return nil, err
	}
	db := &LocalDatabase{
		dbLocks:  dbLocks{name: name, lock: newRWLock(), timeout: cfg.LockTimeout},
		id:       id,
		catalog:  cat,
		provider: provider,
		byID: btree.NewBTreeG(func(a, b *Table) bool {
			return a.Oid < b.Oid
		}),
		versions: xsync.NewMapOf[common.ObjectID, uint64](),
	}
	for _, t := range cat.Tables {
		db.publish(t)
	}
	return db, nil
}

func (db *LocalDatabase) ID() common.ObjectID {
	return db.id
}

func (db *LocalDatabase) FullName() string {
	return db.name
}

// publish makes t the current definition of its table. The caller holds mu or
// is the constructor.
func (db *LocalDatabase) publish(t *Table) {
	db.byID.Set(t)
	db.versions.Store(t.Oid, db.lastVersion.Add(1))
}

func (db *LocalDatabase) unpublish(t *Table) {
	db.byID.Delete(t)
	db.versions.Delete(t.Oid)
}

// CreateTable adds a table. The caller must hold the write lock.
func (db *LocalDatabase) CreateTable(owner LockOwner, name string, columns []Column) (*Table, error) {
	common.Assert(db.IsWriteLockHeldBy(owner), "CreateTable without the write lock")
	db.mu.Lock()
	defer db.mu.Unlock()
	t, err := db.catalog.AddTable(name, columns, db.provider)
	if err != nil {
		return nil, err
	}
	db.publish(t)
	return t, nil
}

// DropTable removes a table. The caller must hold the write lock.
func (db *LocalDatabase) DropTable(owner LockOwner, name string) error {
	common.Assert(db.IsWriteLockHeldBy(owner), "DropTable without the write lock")
	db.mu.Lock()
	defer db.mu.Unlock()
	t, err := db.catalog.DropTable(name, db.provider)
	if err != nil {
		return err
	}
	db.unpublish(t)
	return nil
}

// CreateIndex adds an index to a table, which changes the table's version. The
// caller must hold the write lock.
func (db *LocalDatabase) CreateIndex(owner LockOwner, indexName, tableName, indexType string, columns []string) (*Index, error) {
	common.Assert(db.IsWriteLockHeldBy(owner), "CreateIndex without the write lock")
	db.mu.Lock()
	defer db.mu.Unlock()
	idx, err := db.catalog.AddIndex(indexName, tableName, indexType, columns, db.provider)
	if err != nil {
		return nil, err
	}
	t, err := db.catalog.Table(tableName)
	common.Assert(err == nil, "table vanished while adding an index")
	db.publish(t)
	return idx, nil
}

func (db *LocalDatabase) IsTableExist(name string) bool {
	_, ok := db.Table(name)
	return ok
}

func (db *LocalDatabase) Table(name string) (*Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, err := db.catalog.Table(name)
	return t, err == nil
}

func (db *LocalDatabase) TableByID(oid common.ObjectID) (*Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.byID.Get(&Table{Oid: oid})
}

func (db *LocalDatabase) TableOrError(name string) (*Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.catalog.Table(name)
}

func (db *LocalDatabase) TableVersion(oid common.ObjectID) (uint64, bool) {
	return db.versions.Load(oid)
}

// FindTablesWithColumnName returns the tables that have a column with the
// given name.
func (db *LocalDatabase) FindTablesWithColumnName(column string) []*Table {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Table(nil), db.catalog.FindTablesWithColumnName(column)...)
}

// Tables returns the tables in creation order.
func (db *LocalDatabase) Tables() []*Table {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*Table(nil), db.catalog.Tables...)
}

func (db *LocalDatabase) TablesOnIDOrder() []*Table {
	db.mu.RLock()
	defer db.mu.RUnlock()
	result := make([]*Table, 0, db.byID.Len())
	db.byID.Scan(func(t *Table) bool {
		result = append(result, t)
		return true
	})
	return result
}

func (db *LocalDatabase) TableNames() []string {
	tables := db.TablesOnIDOrder()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// LocalDataSource is the DataSource of databases stored by this process.
type LocalDataSource struct {
	id     common.ObjectID
	name   string
	cfg    config.CatalogConfig
	create sync.Mutex
	nextID atomic.Uint32

	byName *xsync.MapOf[string, *LocalDatabase]
	byID   *xsync.MapOf[common.ObjectID, *LocalDatabase]
}

var _ DataSource = (*LocalDataSource)(nil)

const LocalDataSourceType = "local"

func NewLocalDataSource(id common.ObjectID, name string, cfg config.CatalogConfig) *LocalDataSource {
	return &LocalDataSource{
		id:     id,
		name:   name,
		cfg:    cfg,
		byName: xsync.NewMapOf[string, *LocalDatabase](),
		byID:   xsync.NewMapOf[common.ObjectID, *LocalDatabase](),
	}
}

func (s *LocalDataSource) Type() string {
	return LocalDataSourceType
}

func (s *LocalDataSource) ID() common.ObjectID {
	return s.id
}

func (s *LocalDataSource) Name() string {
	return s.name
}

// CreateDatabase opens a database backed by provider and registers it under
// name. Nothing is loaded from provider if the name is taken.
func (s *LocalDataSource) CreateDatabase(name string, provider PersistenceProvider) (*LocalDatabase, error) {
	s.create.Lock()
	defer s.create.Unlock()
	if _, exists := s.byName.Load(name); exists {
		return nil, common.NewError(common.DuplicateObjectError, "database '%s' already exists", name)
	}
	db, err := NewLocalDatabase(common.ObjectID(s.nextID.Load()+1), name, provider, s.cfg)
	if err != nil {
		return nil, err
	}
	s.nextID.Add(1)
	s.byName.Store(name, db)
	s.byID.Store(db.id, db)
	return db, nil
}

// DatabaseNames returns the database names in id order.
func (s *LocalDataSource) DatabaseNames() []string {
	dbs := btree.NewBTreeG(func(a, b *LocalDatabase) bool { return a.id < b.id })
	s.byID.Range(func(_ common.ObjectID, db *LocalDatabase) bool {
		dbs.Set(db)
		return true
	})
	names := make([]string, 0, dbs.Len())
	dbs.Scan(func(db *LocalDatabase) bool {
		names = append(names, db.name)
		return true
	})
	return names
}

func (s *LocalDataSource) Database(name string) (Database, bool) {
	db, ok := s.byName.Load(name)
	if !ok {
		return nil, false
	}
	return db, true
}

func (s *LocalDataSource) DatabaseByID(id common.ObjectID) (Database, bool) {
	db, ok := s.byID.Load(id)
	if !ok {
		return nil, false
	}
	return db, true
}

func (s *LocalDataSource) DatabaseOrError(name string) (Database, error) {
	db, ok := s.Database(name)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "database '%s' does not exist in %s", name, s.name)
	}
	return db, nil
}

// Registry maps data source names to data sources.
type Registry struct {
	sources *xsync.MapOf[string, DataSource]
}

func NewRegistry() *Registry {
	return &Registry{sources: xsync.NewMapOf[string, DataSource]()}
}

// Register adds a data source. Names are unique.
func (r *Registry) Register(ds DataSource) error {
	if _, loaded := r.sources.LoadOrStore(ds.Name(), ds); loaded {
		return common.NewError(common.DuplicateObjectError, "data source '%s' already exists", ds.Name())
	}
	return nil
}

func (r *Registry) DataSource(name string) (DataSource, bool) {
	return r.sources.Load(name)
}

func (r *Registry) DataSourceOrError(name string) (DataSource, error) {
	ds, ok := r.sources.Load(name)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "data source '%s' does not exist", name)
	}
	return ds, nil
}
