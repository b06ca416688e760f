package core

import (
	"github.com/kilupskalvis/ovc/internal/models"
)

// propertiesEqual compares two property definitions. A nil property only
// equals another nil property.
func propertiesEqual(a, b *models.PropertyDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name {
		return false
	}
	if a.Type != b.Type {
		return false
	}
	if a.Required != b.Required || a.Deprecated != b.Deprecated {
		return false
	}
	return constraintsEqual(a.Constraints, b.Constraints)
}

// constraintsEqual compares two constraint lists as sets
func constraintsEqual(a, b []models.Constraint) bool {
	na, nb := NormalizeConstraints(a), NormalizeConstraints(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i].Kind != nb[i].Kind || na[i].Value != nb[i].Value || na[i].Pattern != nb[i].Pattern {
			return false
		}
		if !stringSlicesEqual(na[i].Values, nb[i].Values) {
			return false
		}
	}
	return true
}

// entityShellsEqual compares existence and declared interfaces, ignoring properties
func entityShellsEqual(a, b *models.EntityDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && stringSlicesEqual(models.NormalizeSet(a.Interfaces), models.NormalizeSet(b.Interfaces))
}

// entitiesEqual compares two entity definitions including their properties
func entitiesEqual(a, b *models.EntityDef) bool {
	if !entityShellsEqual(a, b) {
		return false
	}
	if a == nil {
		return true
	}
	return propertyMapsEqual(a.Properties, b.Properties)
}

// linksEqual compares two link definitions
func linksEqual(a, b *models.LinkDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// interfacesEqual compares two interface definitions
func interfacesEqual(a, b *models.InterfaceDef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && propertyMapsEqual(a.Properties, b.Properties)
}

func propertyMapsEqual(a, b map[string]*models.PropertyDef) bool {
	if len(a) != len(b) {
		return false
	}
	for name, pa := range a {
		if !propertiesEqual(pa, b[name]) {
			return false
		}
	}
	return true
}

// schemasEqual compares the structure of two versions, ignoring metadata
func schemasEqual(a, b *models.SchemaVersion) bool {
	if len(a.Entities) != len(b.Entities) || len(a.Links) != len(b.Links) || len(a.Interfaces) != len(b.Interfaces) {
		return false
	}
	for id, ea := range a.Entities {
		if !entitiesEqual(ea, b.Entities[id]) {
			return false
		}
	}
	for id, la := range a.Links {
		if !linksEqual(la, b.Links[id]) {
			return false
		}
	}
	for id, ia := range a.Interfaces {
		if !interfacesEqual(ia, b.Interfaces[id]) {
			return false
		}
	}
	return true
}

// stringSlicesEqual compares two string slices
func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
