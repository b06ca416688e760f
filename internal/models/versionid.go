package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// schemaContent is the hashed part of a version. Metadata is excluded so
// that two versions with identical structure share a content hash.
type schemaContent struct {
	Entities   map[string]*EntityDef    `json:"entities"`
	Links      map[string]*LinkDef      `json:"links"`
	Interfaces map[string]*InterfaceDef `json:"interfaces"`
}

// HashSchemaContent creates a deterministic hash of the schema structure.
// encoding/json writes map keys in sorted order, and interface sets are kept
// sorted by Normalize, so equal structures always hash equally.
func HashSchemaContent(s *SchemaVersion) string {
	if s == nil {
		return ""
	}
	data, _ := json.Marshal(schemaContent{
		Entities:   s.Entities,
		Links:      s.Links,
		Interfaces: s.Interfaces,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// GenerateVersionID generates a content-addressable version ID.
// The ID covers both parents and the content hash so that two versions with
// identical metadata but different structure produce different IDs.
func GenerateVersionID(message string, timestamp time.Time, parentID, mergeParentID, contentHash string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s", message, timestamp.Format(time.RFC3339Nano), parentID, mergeParentID, contentHash)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
