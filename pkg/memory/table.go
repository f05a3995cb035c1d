package memory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"heapstore/pkg/dberror"
	"heapstore/pkg/primitives"
	"heapstore/pkg/storage/page"
	"heapstore/pkg/tuple"
)

// Catalog resolves table ids to their files. The buffer pool never creates
// tables itself.
type Catalog interface {
	GetDatabaseFile(tableID primitives.TableID) (page.DbFile, error)
	GetTupleDesc(tableID primitives.TableID) (*tuple.TupleDescription, error)
}

// TableInfo holds metadata about a table
type TableInfo struct {
	Name string
	File page.DbFile
}

// GetID returns the table's unique identifier
func (ti *TableInfo) GetID() primitives.TableID {
	return ti.File.GetID()
}

// TableManager is an in-memory Catalog keyed by both table name and id.
type TableManager struct {
	nameToTable map[string]*TableInfo
	idToTable   map[primitives.TableID]*TableInfo
	mutex       sync.RWMutex
}

// NewTableManager creates a new empty TableManager instance.
func NewTableManager() *TableManager {
	return &TableManager{
		nameToTable: make(map[string]*TableInfo),
		idToTable:   make(map[primitives.TableID]*TableInfo),
	}
}

// AddTable registers f under name. An existing table with the same name or
// id is replaced.
func (tm *TableManager) AddTable(f page.DbFile, name string) error {
	if f == nil {
		return fmt.Errorf("file cannot be nil")
	}
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	id := f.GetID()
	if old, ok := tm.nameToTable[name]; ok {
		delete(tm.idToTable, old.GetID())
	}
	if old, ok := tm.idToTable[id]; ok {
		delete(tm.nameToTable, old.Name)
	}

	info := &TableInfo{Name: name, File: f}
	tm.nameToTable[name] = info
	tm.idToTable[id] = info
	return nil
}

// GetTableID returns the id of the named table.
func (tm *TableManager) GetTableID(name string) (primitives.TableID, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	info, ok := tm.nameToTable[name]
	if !ok {
		return primitives.InvalidTableID, dberror.Errorf(dberror.ErrTableNotFound, "table %q", name)
	}
	return info.GetID(), nil
}

func (tm *TableManager) GetDatabaseFile(tableID primitives.TableID) (page.DbFile, error) {
	info, err := tm.GetTableInfo(tableID)
	if err != nil {
		return nil, err
	}
	return info.File, nil
}

func (tm *TableManager) GetTupleDesc(tableID primitives.TableID) (*tuple.TupleDescription, error) {
	info, err := tm.GetTableInfo(tableID)
	if err != nil {
		return nil, err
	}
	return info.File.GetTupleDesc(), nil
}

func (tm *TableManager) GetTableInfo(tableID primitives.TableID) (*TableInfo, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	info, ok := tm.idToTable[tableID]
	if !ok {
		return nil, dberror.Errorf(dberror.ErrTableNotFound, "table id %d", uint64(tableID))
	}
	return info, nil
}

func (tm *TableManager) TableExists(name string) bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	_, ok := tm.nameToTable[name]
	return ok
}

// RemoveTable unregisters the named table without closing its file.
func (tm *TableManager) RemoveTable(name string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	info, ok := tm.nameToTable[name]
	if !ok {
		return dberror.Errorf(dberror.ErrTableNotFound, "table %q", name)
	}
	delete(tm.nameToTable, name)
	delete(tm.idToTable, info.GetID())
	return nil
}

// GetAllTableNames returns the registered names in sorted order.
func (tm *TableManager) GetAllTableNames() []string {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return slices.Sorted(maps.Keys(tm.nameToTable))
}

// Close closes every registered file and empties the catalog.
func (tm *TableManager) Close() error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	var errs []error
	for _, info := range tm.idToTable {
		if err := info.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", info.Name, err))
		}
	}

	tm.nameToTable = make(map[string]*TableInfo)
	tm.idToTable = make(map[primitives.TableID]*TableInfo)
	return errors.Join(errs...)
}
