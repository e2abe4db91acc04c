// Package pregen generates Go source holding pre-computed cell groups of
// a container mapping, and checks at runtime that the generated tables still
// match the mapping they are applied to.
package pregen

import (
	"sync"

	"github.com/syssam/csmap"
	"github.com/syssam/csmap/mapping"
	"github.com/syssam/csmap/signature"
	"github.com/syssam/csmap/viewgen"
)

// Views are the pre-computed cell groups of one container mapping.
type Views struct {
	Container string
	// Signature is the hex signature of the mapping the views were built
	// from.
	Signature   string
	Mode        string
	Groups      []Group
	Identifiers []string
}

// Group is a pre-computed cell group.
type Group struct {
	Cells   []Cell
	Extents []string
}

// Cell is a pre-computed cell.
type Cell struct {
	Number int
	Extent string
	Table  string
	Types  []string
	CSlots []string
	SSlots []string
}

// FromOutput converts a cell group computation over cm into Views.
func FromOutput(cm *mapping.ContainerMapping, cfg viewgen.Config, out *viewgen.Output) (*Views, error) {
	sig, err := signature.Compute(cm)
	if err != nil {
		return nil, err
	}
	v := &Views{
		Container:   cm.Identity(),
		Signature:   sig.String(),
		Mode:        cfg.Mode.String(),
		Identifiers: out.Identifiers,
	}
	for _, g := range out.CellGroups {
		var group Group
		for _, e := range g.Extents {
			group.Extents = append(group.Extents, e.SetName())
		}
		for _, c := range g.Cells {
			cell := Cell{
				Number: c.Number,
				CSlots: c.CQuery.Slots,
				SSlots: c.SQuery.Slots,
			}
			if c.CQuery.Extent != nil {
				cell.Extent = c.CQuery.Extent.SetName()
			}
			if c.SQuery.Extent != nil {
				cell.Table = c.SQuery.Extent.SetName()
			}
			for _, t := range c.Types {
				cell.Types = append(cell.Types, t.FullName())
			}
			for _, t := range c.IsOfTypes {
				cell.Types = append(cell.Types, "IsTypeOf("+t.FullName()+")")
			}
			group.Cells = append(group.Cells, cell)
		}
		v.Groups = append(v.Groups, group)
	}
	return v, nil
}

// Check returns a *csmap.StaleViewsError when cm's signature differs from
// the one v was built from.
func (v *Views) Check(cm *mapping.ContainerMapping) error {
	sig, err := signature.Compute(cm)
	if err != nil {
		return err
	}
	if actual := sig.String(); actual != v.Signature {
		return &csmap.StaleViewsError{Container: v.Container, Expected: v.Signature, Actual: actual}
	}
	return nil
}

var registry = struct {
	sync.RWMutex
	views map[string]*Views
}{views: make(map[string]*Views)}

// Register makes generated views available to Resolve. Generated files
// call it from init.
func Register(v *Views) {
	registry.Lock()
	defer registry.Unlock()
	registry.views[v.Container] = v
}

// Lookup returns the views registered for container.
func Lookup(container string) (*Views, bool) {
	registry.RLock()
	defer registry.RUnlock()
	v, ok := registry.views[container]
	return v, ok
}

// Resolve returns the registered views of cm after checking they are not
// stale. It returns nil and no error when no views are registered.
func Resolve(cm *mapping.ContainerMapping) (*Views, error) {
	v, ok := Lookup(cm.Identity())
	if !ok {
		return nil, nil
	}
	if err := v.Check(cm); err != nil {
		return nil, err
	}
	return v, nil
}
