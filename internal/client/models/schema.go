package models

const (
	TableCars        = "cars"
	TableMaintenance = "maintenance"
	TableExpenses    = "expenses"
	TableCarData     = "car_data"
	TableArticles    = "articles"

	OwnerField = "userId"
)

// TableSpec describes one entity type.
type TableSpec struct {
	Name       string
	OwnerField string
	// References maps a local field name to the parent table whose ids it
	// holds, e.g. "carId" -> "cars".
	References map[string]string
}

type Schema []TableSpec

// DefaultSchema lists the ledger's entity types.
func DefaultSchema() Schema {
	carRef := func() map[string]string { return map[string]string{"carId": TableCars} }
	return Schema{
		{Name: TableCars, OwnerField: OwnerField},
		{Name: TableMaintenance, OwnerField: OwnerField, References: carRef()},
		{Name: TableExpenses, OwnerField: OwnerField, References: carRef()},
		{Name: TableCarData, OwnerField: OwnerField, References: carRef()},
		{Name: TableArticles, OwnerField: OwnerField},
	}
}

func (s Schema) Table(name string) (TableSpec, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = t.Name
	}
	return names
}

// ChildRef is a field in Table that points at another table's ids.
type ChildRef struct {
	Table string
	Field string
}

// Children lists every (table, field) referencing parent.
func (s Schema) Children(parent string) []ChildRef {
	var refs []ChildRef
	for _, t := range s {
		for field, target := range t.References {
			if target == parent {
				refs = append(refs, ChildRef{Table: t.Name, Field: field})
			}
		}
	}
	return refs
}

// Ordered returns the tables with every parent before its children.
// Unknown or cyclic references keep their declaration order.
func (s Schema) Ordered() Schema {
	out := make(Schema, 0, len(s))
	placed := make(map[string]bool, len(s))
	known := make(map[string]bool, len(s))
	for _, t := range s {
		known[t.Name] = true
	}

	for len(out) < len(s) {
		progressed := false
		for _, t := range s {
			if placed[t.Name] {
				continue
			}
			ready := true
			for _, parent := range t.References {
				if known[parent] && parent != t.Name && !placed[parent] {
					ready = false
					break
				}
			}
			if ready {
				out = append(out, t)
				placed[t.Name] = true
				progressed = true
			}
		}
		if !progressed {
			for _, t := range s {
				if !placed[t.Name] {
					out = append(out, t)
					placed[t.Name] = true
				}
			}
		}
	}
	return out
}
