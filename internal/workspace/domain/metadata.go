package domain

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// Metadata is the typed view of the organization metadata bag. All parsing of
// raw metadata happens here, at the data-access boundary; stringified JSON
// never leaks past this package.
type Metadata struct {
	IsPersonal  bool
	DefaultRole Role
}

const (
	metadataKeyIsPersonal  = "isPersonal"
	metadataKeyDefaultRole = "default_role"
)

// NormalizeMetadata converts a raw metadata bag into its typed form.
// Malformed or missing values degrade to defaults instead of failing: a
// broken metadata row must never block rendering a workspace.
func NormalizeMetadata(raw datatypes.JSONMap) Metadata {
	meta := Metadata{DefaultRole: RoleMember}
	if raw == nil {
		return meta
	}

	meta.IsPersonal = boolValue(raw[metadataKeyIsPersonal])

	if role, ok := stringValue(raw[metadataKeyDefaultRole]); ok {
		parsed := Role(strings.ToLower(strings.TrimSpace(role)))
		if parsed.Valid() {
			meta.DefaultRole = parsed
		}
	}

	return meta
}

// ParseMetadataString handles legacy rows where the whole bag was persisted
// as a JSON string. Invalid JSON yields defaults.
func ParseMetadataString(raw string) Metadata {
	var bag map[string]any
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return Metadata{DefaultRole: RoleMember}
	}
	return NormalizeMetadata(datatypes.JSONMap(bag))
}

// JSONMap renders typed metadata back into the persisted representation.
func (m Metadata) JSONMap() datatypes.JSONMap {
	role := m.DefaultRole
	if !role.Valid() {
		role = RoleMember
	}
	return datatypes.JSONMap{
		metadataKeyIsPersonal:  m.IsPersonal,
		metadataKeyDefaultRole: string(role),
	}
}

func boolValue(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

func stringValue(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}
