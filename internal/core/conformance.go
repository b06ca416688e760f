package core

import (
	"fmt"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Check verifies that an entity provides every member of each interface it
// declares. declared holds the interface definitions visible to the entity.
// A member conforms if its type widens to the mandated type. Severity is
// WARN while at most half of an interface's members fail, ERROR beyond.
func Check(entity *models.EntityDef, declared map[string]*models.InterfaceDef) []models.Conflict {
	var out []models.Conflict
	for _, ifaceID := range entity.Interfaces {
		iface, ok := declared[ifaceID]
		if !ok {
			out = append(out, &models.InterfaceMismatchConflict{
				ConflictHeader: models.ConflictHeader{
					Severity: models.SeverityError,
					EntityID: entity.ID,
					FieldID:  ifaceID,
				},
				InterfaceID: ifaceID,
				Reason:      models.MismatchUndefined,
			})
			continue
		}

		var failing []*models.InterfaceMismatchConflict
		for _, name := range iface.PropertyNames() {
			want := iface.Properties[name]
			have, ok := entity.Properties[name]
			switch {
			case !ok:
				failing = append(failing, &models.InterfaceMismatchConflict{
					InterfaceID:  ifaceID,
					Member:       name,
					Reason:       models.MismatchMissing,
					ExpectedType: want.Type,
				})
			case !Widens(have.Type, want.Type):
				failing = append(failing, &models.InterfaceMismatchConflict{
					InterfaceID:  ifaceID,
					Member:       name,
					Reason:       models.MismatchIncompatible,
					ExpectedType: want.Type,
					ActualType:   have.Type,
				})
			}
		}

		severity := models.SeverityWarn
		if 2*len(failing) > len(iface.Properties) {
			severity = models.SeverityError
		}
		for _, c := range failing {
			c.ConflictHeader = models.ConflictHeader{
				Severity: severity,
				EntityID: entity.ID,
				FieldID:  fmt.Sprintf("%s.%s", ifaceID, c.Member),
			}
			out = append(out, c)
		}
	}
	return out
}

// CheckSchema runs Check over every entity of a schema
func CheckSchema(schema *models.SchemaVersion) []models.Conflict {
	var out []models.Conflict
	for _, id := range schema.EntityIDs() {
		out = append(out, Check(schema.Entities[id], schema.Interfaces)...)
	}
	SortConflicts(out)
	return out
}
