package catalog

import (
	"context"
	"strings"

	"mit.edu/dsg/godbopt/common"
)

// TableRef is a table resolved by a Provider, together with the schema
// version it was read at.
type TableRef struct {
	Source   string
	Database string
	Table    *Table
	Version  uint64
}

// Qualifier returns the name path that qualifies the table's columns.
func (r *TableRef) Qualifier() []string {
	return []string{r.Database, r.Table.Name}
}

func (r *TableRef) String() string {
	return strings.Join([]string{r.Source, r.Database, r.Table.Name}, ".")
}

// Provider resolves table names for the binder. Names may be qualified with a
// database and a data source; missing parts default to the provider's.
type Provider struct {
	registry        *Registry
	defaultSource   string
	defaultDatabase string
}

func NewProvider(registry *Registry, defaultSource, defaultDatabase string) *Provider {
	return &Provider{
		registry:        registry,
		defaultSource:   defaultSource,
		defaultDatabase: defaultDatabase,
	}
}

func (p *Provider) database(source, database string) (DataSource, Database, error) {
	ds, err := p.registry.DataSourceOrError(source)
	if err != nil {
		return nil, nil, err
	}
	db, err := ds.DatabaseOrError(database)
	if err != nil {
		return nil, nil, err
	}
	return ds, db, nil
}

// ResolveTable looks up a table by its name parts: table, database.table or
// source.database.table. It fails with NoSuchObjectError if any part does not
// exist.
func (p *Provider) ResolveTable(ctx context.Context, nameParts []string) (*TableRef, error) {
	source, database := p.defaultSource, p.defaultDatabase
	var table string
	switch len(nameParts) {
	case 1:
		table = nameParts[0]
	case 2:
		database, table = nameParts[0], nameParts[1]
	case 3:
		source, database, table = nameParts[0], nameParts[1], nameParts[2]
	default:
		return nil, common.NewError(common.NoSuchObjectError, "invalid table name %s", strings.Join(nameParts, "."))
	}

	ds, db, err := p.database(source, database)
	if err != nil {
		return nil, err
	}
	// The read lock keeps the table and its version consistent.
	if err := db.ReadLock(ctx); err != nil {
		return nil, err
	}
	defer db.ReadUnlock()
	t, err := db.TableOrError(table)
	if err != nil {
		return nil, err
	}
	version, ok := db.TableVersion(t.Oid)
	common.Assert(ok, "table without a version")
	return &TableRef{Source: ds.Name(), Database: db.FullName(), Table: t, Version: version}, nil
}

// Validate checks that ref still describes the current schema. It fails with
// SchemaChangedError if the table was dropped or altered since it was
// resolved.
func (p *Provider) Validate(ctx context.Context, ref *TableRef) error {
	_, db, err := p.database(ref.Source, ref.Database)
	if err != nil {
		return common.NewError(common.SchemaChangedError, "database of table %s disappeared", ref)
	}
	if err := db.ReadLock(ctx); err != nil {
		return err
	}
	defer db.ReadUnlock()
	version, ok := db.TableVersion(ref.Table.Oid)
	if !ok {
		return common.NewError(common.SchemaChangedError, "table %s was dropped", ref)
	}
	if version != ref.Version {
		return common.NewError(common.SchemaChangedError,
			"table %s changed from version %d to %d", ref, ref.Version, version)
	}
	return nil
}
