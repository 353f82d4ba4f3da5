package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"mit.edu/dsg/godbopt/common"
)

// Catalog holds the schema of one database: its tables, their columns and
// indexes. It is serialized as a single JSON blob through a
// PersistenceProvider.
//
// Catalog itself does no locking. LocalDatabase wraps it with the database
// locks and the schema versions the binder relies on.
type Catalog struct {
	catalogState

	byName   map[string]*Table
	byColumn map[string][]*Table
}

type Column struct {
	Name     string      `json:"name"`
	Type     common.Type `json:"type"`
	Nullable bool        `json:"nullable"`
}

// Index describes an access path on a table, keyed by the columns in
// KeySchema.
type Index struct {
	Oid       common.ObjectID `json:"oid"`
	TableOid  common.ObjectID `json:"table_oid"`
	Name      string          `json:"name"`
	Type      string          `json:"type"` // "hash" or "btree"
	KeySchema []string        `json:"key_schema"`
}

// Table is never modified once published; a schema change replaces the
// *Table.
type Table struct {
	Oid     common.ObjectID `json:"oid"`
	Name    string          `json:"name"`
	Columns []Column        `json:"columns"`
	Indexes []Index         `json:"indexes"`
}

// PersistenceProvider loads and saves the serialized catalog. Load returns an
// error satisfying errors.Is(err, os.ErrNotExist) when nothing was saved yet.
type PersistenceProvider interface {
	LoadCatalogState() (json string, err error)
	SaveCatalogState(json string) error
}

func (t *Table) String() string {
	return marshal(t)
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

func (t *Table) index(name string) bool {
	return slices.ContainsFunc(t.Indexes, func(idx Index) bool { return idx.Name == name })
}

func (t *Table) clone() *Table {
	c := *t
	c.Columns = slices.Clone(t.Columns)
	c.Indexes = slices.Clone(t.Indexes)
	return &c
}

type catalogState struct {
	// NextOid is the last ObjectID handed out. 0 is never used.
	NextOid uint32   `json:"next_id"`
	Tables  []*Table `json:"tables"`
}

func marshal(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func (c *Catalog) String() string {
	return marshal(c)
}

// NewCatalog loads the catalog saved through provider, or starts an empty one
// if nothing was saved.
func NewCatalog(provider PersistenceProvider) (*Catalog, error) {
	c := &Catalog{catalogState: catalogState{Tables: []*Table{}}}
	state, err := provider.LoadCatalogState()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, errors.Wrap(err, "loading catalog state")
	default:
		if err := json.Unmarshal([]byte(state), &c.catalogState); err != nil {
			return nil, errors.Wrap(err, "failed to parse catalog state")
		}
	}
	c.reindex()
	return c, nil
}

func (c *Catalog) reindex() {
	c.byName = make(map[string]*Table, len(c.Tables))
	c.byColumn = make(map[string][]*Table)
	for _, t := range c.Tables {
		c.byName[t.Name] = t
		for _, col := range t.Columns {
			c.byColumn[col.Name] = append(c.byColumn[col.Name], t)
		}
	}
}

func (c *Catalog) save(provider PersistenceProvider) error {
	b, err := json.MarshalIndent(&c.catalogState, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding catalog state")
	}
	return provider.SaveCatalogState(string(b))
}

func (c *Catalog) nextOid() common.ObjectID {
	c.NextOid++
	return common.ObjectID(c.NextOid)
}

// AddTable creates a table with a fresh ObjectID and saves the catalog. Table
// and column names must be unique (DuplicateObjectError).
func (c *Catalog) AddTable(tableName string, columns []Column, provider PersistenceProvider) (*Table, error) {
	if _, exists := c.byName[tableName]; exists {
		return nil, common.NewError(common.DuplicateObjectError, "table '%s' already exists", tableName)
	}
	for i, col := range columns {
		if slices.ContainsFunc(columns[:i], func(other Column) bool { return other.Name == col.Name }) {
			return nil, common.NewError(common.DuplicateObjectError,
				"column '%s' appears twice in table '%s'", col.Name, tableName)
		}
	}

	t := &Table{
		Oid:     c.nextOid(),
		Name:    tableName,
		Columns: slices.Clone(columns),
		Indexes: []Index{},
	}
	c.Tables = append(c.Tables, t)
	c.reindex()
	return t, c.save(provider)
}

// DropTable removes a table and its indexes from the catalog.
func (c *Catalog) DropTable(tableName string, provider PersistenceProvider) (*Table, error) {
	t, err := c.Table(tableName)
	if err != nil {
		return nil, err
	}
	c.Tables = slices.DeleteFunc(c.Tables, func(other *Table) bool { return other == t })
	c.reindex()
	return t, c.save(provider)
}

// Table looks a table up by name.
func (c *Catalog) Table(tableName string) (*Table, error) {
	t, ok := c.byName[tableName]
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", tableName)
	}
	return t, nil
}

// FindTablesWithColumnName returns all tables that contain a column with
// the given name.
func (c *Catalog) FindTablesWithColumnName(columnName string) []*Table {
	return c.byColumn[columnName]
}

// AddIndex attaches a new index to a table. The table is replaced by a copy
// carrying the index, so readers holding the old *Table keep a consistent
// view.
func (c *Catalog) AddIndex(indexName string, tableName string, indexType string, columnNames []string, provider PersistenceProvider) (*Index, error) {
	table, err := c.Table(tableName)
	if err != nil {
		return nil, err
	}
	if table.index(indexName) {
		return nil, common.NewError(common.DuplicateObjectError,
			"index '%s' already exists on table '%s'", indexName, tableName)
	}
	for _, name := range columnNames {
		if _, ok := table.Column(name); !ok {
			return nil, common.NewError(common.NoSuchObjectError,
				"column '%s' does not exist in table '%s'", name, tableName)
		}
	}

	idx := Index{
		Oid:       c.nextOid(),
		TableOid:  table.Oid,
		Name:      indexName,
		Type:      indexType,
		KeySchema: slices.Clone(columnNames),
	}
	updated := table.clone()
	updated.Indexes = append(updated.Indexes, idx)
	c.Tables[slices.Index(c.Tables, table)] = updated
	c.reindex()
	return &idx, c.save(provider)
}

const CatalogFileName = "catalog.json"

// DiskCatalogManager keeps the catalog in CatalogFileName under a directory.
type DiskCatalogManager struct {
	rootPath string
}

func NewDiskCatalogManager(rootPath string) *DiskCatalogManager {
	return &DiskCatalogManager{rootPath: rootPath}
}

func (dcm *DiskCatalogManager) path() string {
	return filepath.Join(dcm.rootPath, CatalogFileName)
}

func (dcm *DiskCatalogManager) LoadCatalogState() (string, error) {
	content, err := os.ReadFile(dcm.path())
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SaveCatalogState replaces the file atomically through a rename.
func (dcm *DiskCatalogManager) SaveCatalogState(jsonData string) error {
	tmp := dcm.path() + ".tmp"
	if err := os.WriteFile(tmp, []byte(jsonData), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, dcm.path()), "replacing catalog file")
}

// MemCatalogManager keeps the catalog state in memory. It is used for
// databases that do not outlive the process, and in tests.
type MemCatalogManager struct {
	state string
	saves int
}

func NewMemCatalogManager() *MemCatalogManager {
	return &MemCatalogManager{}
}

func (m *MemCatalogManager) LoadCatalogState() (string, error) {
	if m.state == "" {
		return "", os.ErrNotExist
	}
	return m.state, nil
}

func (m *MemCatalogManager) SaveCatalogState(jsonData string) error {
	m.state = jsonData
	m.saves++
	return nil
}

// Saves returns how many times the state was saved.
func (m *MemCatalogManager) Saves() int {
	return m.saves
}
