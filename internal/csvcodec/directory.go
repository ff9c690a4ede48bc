package csvcodec

import "contas/internal/core"

// Directory maps reference entities between ids and names for one owner.
// Names are matched exactly, case included.
type Directory struct {
	byID   map[core.EntityType]map[string]core.Entity
	byName map[core.EntityType]map[string]core.Entity
}

// NewDirectory indexes the given entities. When two entities of the same
// type share a name the first one wins.
func NewDirectory(entities ...[]core.Entity) *Directory {
	d := &Directory{
		byID:   map[core.EntityType]map[string]core.Entity{},
		byName: map[core.EntityType]map[string]core.Entity{},
	}
	for _, list := range entities {
		for _, e := range list {
			d.add(e)
		}
	}
	return d
}

func (d *Directory) add(e core.Entity) {
	if d.byID[e.Type] == nil {
		d.byID[e.Type] = map[string]core.Entity{}
		d.byName[e.Type] = map[string]core.Entity{}
	}
	d.byID[e.Type][e.ID] = e
	if _, dup := d.byName[e.Type][e.Name]; !dup {
		d.byName[e.Type][e.Name] = e
	}
}

// Lookup resolves a name to an entity.
func (d *Directory) Lookup(t core.EntityType, name string) (core.Entity, bool) {
	e, ok := d.byName[t][name]
	return e, ok
}

// Get resolves an id to an entity.
func (d *Directory) Get(t core.EntityType, id string) (core.Entity, bool) {
	e, ok := d.byID[t][id]
	return e, ok
}

// Name returns the entity name for id, or "" when id is empty or unknown.
func (d *Directory) Name(t core.EntityType, id string) string {
	if id == "" {
		return ""
	}
	return d.byID[t][id].Name
}
