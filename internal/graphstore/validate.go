package graphstore

import (
	"encoding/json"
	"fmt"

	"github.com/kilupskalvis/ovc/internal/models"
)

// ValidateSchema runs the store's structural checks. It returns nil when the
// schema is acceptable.
func ValidateSchema(s *models.SchemaVersion) []ConflictReport {
	var reports []ConflictReport

	for _, id := range s.EntityIDs() {
		entity := s.Entities[id]
		for _, name := range entity.PropertyNames() {
			if entity.Properties[name].Type == "" {
				reports = append(reports, ConflictReport{
					Type:    "property_type",
					Entity:  id,
					Field:   name,
					Message: "property has no type",
				})
			}
		}
	}

	for _, id := range s.LinkIDs() {
		link := s.Links[id]
		if !link.Cardinality.Valid() {
			reports = append(reports, ConflictReport{
				Type:    "cardinality",
				Entity:  link.Source,
				Field:   id,
				ValueA:  string(link.Cardinality),
				Message: "unknown cardinality",
			})
		}
		for _, end := range []string{link.Source, link.Target} {
			if _, ok := s.Entities[end]; !ok {
				reports = append(reports, ConflictReport{
					Type:    "delete_modify",
					Entity:  end,
					Field:   id,
					Message: fmt.Sprintf("link %s references missing entity %s", id, end),
				})
			}
		}
	}

	return reports
}

// conflictFromReports wraps reports into an ExternalConflict
func conflictFromReports(reports []ConflictReport) error {
	payload, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("marshal conflict reports: %w", err)
	}
	return &ExternalConflict{Payload: payload}
}
