// Package registry maintains the process-wide mapping from table name to
// live record collection. It replaces ambient global model state with an
// explicit, synchronized object owned by the process: schema mutations go
// through per-name locks so concurrent create/delete races on one table
// resolve deterministically.
package registry

import (
	"sort"
	"sync"

	"github.com/campusdesk/report-portal-api/internal/models"
)

// Collection is a live handle to one registered table.
type Collection struct {
	// Name is the normalized table name.
	Name string
	// Schema is the normalized descriptor the collection was registered
	// with. Replaced wholesale on schema update.
	Schema models.TableSchema
}

// Ident is the physical table identifier backing the collection.
func (c *Collection) Ident() string {
	return "dt_" + c.Name
}

// Registry maps normalized table names to live collections.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Collection

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		tables: make(map[string]*Collection),
		locks:  make(map[string]*sync.Mutex),
	}
}

// LockName serializes schema mutations on one table name. The returned
// function releases the lock.
func (r *Registry) LockName(name string) func() {
	r.lockMu.Lock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	r.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// Register installs a collection for the schema's table name. It reports
// false when the name is already taken.
func (r *Registry) Register(schema models.TableSchema) (*Collection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[schema.TableName]; exists {
		return nil, false
	}
	col := &Collection{Name: schema.TableName, Schema: schema}
	r.tables[schema.TableName] = col
	return col, true
}

// Replace swaps the collection registered under the schema's name,
// installing it if absent. Used on schema update and rehydration.
func (r *Registry) Replace(schema models.TableSchema) *Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	col := &Collection{Name: schema.TableName, Schema: schema}
	r.tables[schema.TableName] = col
	return col
}

// Deregister removes the collection under name, reporting whether it
// existed.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[name]; !exists {
		return false
	}
	delete(r.tables, name)
	return true
}

// Resolve returns the live collection for a normalized table name.
func (r *Registry) Resolve(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	col, ok := r.tables[name]
	return col, ok
}

// Names lists registered table names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
