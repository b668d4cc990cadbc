package domain

import (
	"fmt"
	"sort"
)

// UnitTree is a read-only arena of units keyed by id. Superiors are referenced by id.
type UnitTree struct {
	units    map[string]Unit
	children map[string][]string
	order    []string
}

// NewUnitTree indexes units and rejects dangling superiors and cycles.
func NewUnitTree(units []Unit) (*UnitTree, error) {
	tree := &UnitTree{
		units:    make(map[string]Unit, len(units)),
		children: map[string][]string{},
		order:    make([]string, 0, len(units)),
	}
	for _, unit := range units {
		if _, exists := tree.units[unit.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate unit %q", ErrInvalidHierarchy, unit.ID)
		}
		tree.units[unit.ID] = unit
		tree.order = append(tree.order, unit.ID)
	}
	for _, id := range tree.order {
		unit := tree.units[id]
		if unit.SuperiorID == "" {
			continue
		}
		if _, ok := tree.units[unit.SuperiorID]; !ok {
			return nil, fmt.Errorf("%w: unit %q references unknown superior %q", ErrInvalidHierarchy, unit.ID, unit.SuperiorID)
		}
		tree.children[unit.SuperiorID] = append(tree.children[unit.SuperiorID], unit.ID)
	}
	for _, id := range tree.order {
		if err := tree.checkAcyclic(id); err != nil {
			return nil, err
		}
	}
	for parent := range tree.children {
		kids := tree.children[parent]
		sort.SliceStable(kids, func(i, j int) bool {
			return tree.units[kids[i]].Code < tree.units[kids[j]].Code
		})
	}
	return tree, nil
}

func (t *UnitTree) checkAcyclic(id string) error {
	seen := map[string]struct{}{}
	current := id
	for current != "" {
		if _, ok := seen[current]; ok {
			return fmt.Errorf("%w: cycle through unit %q", ErrInvalidHierarchy, id)
		}
		seen[current] = struct{}{}
		current = t.units[current].SuperiorID
	}
	return nil
}

// Unit resolves a unit by id.
func (t *UnitTree) Unit(id string) (Unit, bool) {
	if t == nil {
		return Unit{}, false
	}
	unit, ok := t.units[id]
	return unit, ok
}

// Superior returns the direct superior of a unit; false for top-level or unknown units.
func (t *UnitTree) Superior(id string) (Unit, bool) {
	unit, ok := t.Unit(id)
	if !ok || unit.SuperiorID == "" {
		return Unit{}, false
	}
	return t.Unit(unit.SuperiorID)
}

// IsTopLevel reports whether the unit exists and has no superior.
func (t *UnitTree) IsTopLevel(id string) bool {
	unit, ok := t.Unit(id)
	return ok && unit.SuperiorID == ""
}

// Children returns direct subordinates ordered by code.
func (t *UnitTree) Children(id string) []Unit {
	if t == nil {
		return nil
	}
	ids := t.children[id]
	out := make([]Unit, 0, len(ids))
	for _, childID := range ids {
		out = append(out, t.units[childID])
	}
	return out
}

// Descendants returns every transitive subordinate, depth first.
func (t *UnitTree) Descendants(id string) []Unit {
	var out []Unit
	var walk func(string)
	walk = func(parent string) {
		for _, child := range t.Children(parent) {
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(id)
	return out
}

// Units returns every unit in insertion order.
func (t *UnitTree) Units() []Unit {
	if t == nil {
		return nil
	}
	out := make([]Unit, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.units[id])
	}
	return out
}
