package naming

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrAlreadyAssigned = errors.New("storage identifier already assigned with a different kind")

// Entry is one catalogued runtime resource set.
type Entry struct {
	ID         uuid.UUID
	Kind       Kind
	Identifier string
	CompanyID  string
	ProjectID  string
}

// Resources lists every external name that belongs to a layer.
type Resources struct {
	Workspace string
	Store     string
	Layer     string
	Table     string
	Group     string
}

func (e Entry) Resources() Resources {
	res := Resources{
		Workspace: Workspace(e.CompanyID),
		Layer:     e.Identifier,
		Group:     LayerGroup(e.ProjectID, Category(e.Kind)),
	}
	switch e.Kind {
	case KindVector:
		res.Table = e.Identifier
		res.Store = ProjectStore(e.ProjectID)
	default:
		res.Store = e.Identifier
	}
	return res
}

// Registry keeps the identifier assigned to each entity. Entries live in a
// slice and are addressed through an id index; removed slots are reused.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	free    []int
	index   map[uuid.UUID]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[uuid.UUID]int)}
}

// Assign returns the canonical identifier for id, creating the entry on
// first use. An identifier never changes once assigned.
func (r *Registry) Assign(kind Kind, id uuid.UUID, companyID, projectID string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[id]; ok {
		existing := r.entries[i]
		if existing.Kind != kind {
			return Entry{}, ErrAlreadyAssigned
		}
		return existing, nil
	}

	entry := Entry{
		ID:         id,
		Kind:       kind,
		Identifier: StorageIdentifier(kind, id),
		CompanyID:  companyID,
		ProjectID:  projectID,
	}

	if n := len(r.free); n > 0 {
		slot := r.free[n-1]
		r.free = r.free[:n-1]
		r.entries[slot] = entry
		r.index[id] = slot
	} else {
		r.entries = append(r.entries, entry)
		r.index[id] = len(r.entries) - 1
	}
	return entry, nil
}

func (r *Registry) Lookup(id uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Release drops an entry after its resources were permanently removed.
func (r *Registry) Release(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return
	}
	r.entries[i] = Entry{}
	r.free = append(r.free, i)
	delete(r.index, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// ImageryResources names the shared point layer of a project's street
// imagery. Every imagery record of the project lands in the same table.
func ImageryResources(companyID, projectID string) Resources {
	return Resources{
		Workspace: Workspace(companyID),
		Store:     ProjectStore(projectID),
		Layer:     ImageryLayer(projectID),
		Table:     ImageryTable(projectID),
		Group:     LayerGroup(projectID, CategoryImagery),
	}
}
