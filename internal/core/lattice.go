package core

import (
	"sort"
	"strings"

	"github.com/kilupskalvis/ovc/internal/models"
)

// typeAliases maps accepted spellings to a canonical type name
var typeAliases = map[string]string{
	"int":     "int32",
	"integer": "int32",
	"int32":   "int32",
	"long":    "int64",
	"bigint":  "int64",
	"int64":   "int64",
	"float":   "float32",
	"float32": "float32",
	"double":  "float64",
	"float64": "float64",
	"bool":    "boolean",
	"boolean": "boolean",
	"str":     "string",
	"string":  "string",
	"text":    "text",
}

// wideningEdges is the fixed compatibility lattice over canonical names.
// An edge a -> b means every value of a is representable as b.
var wideningEdges = map[string][]string{
	"string":  {"text"},
	"int32":   {"int64"},
	"float32": {"float64"},
}

// CanonicalType normalizes a type name. Enum types are written
// "enum(a,b,c)" and canonicalize to their sorted member set; members keep
// their case.
func CanonicalType(t string) string {
	t = strings.TrimSpace(t)
	if members, ok := parseEnum(t); ok {
		return "enum(" + strings.Join(members, ",") + ")"
	}
	t = strings.ToLower(t)
	if c, ok := typeAliases[t]; ok {
		return c
	}
	return t
}

// TypesEquivalent returns true if two spellings denote the same type
func TypesEquivalent(a, b string) bool {
	return CanonicalType(a) == CanonicalType(b)
}

// Widens returns true if every value of type from is a value of type to.
// The relation is reflexive.
func Widens(from, to string) bool {
	from, to = CanonicalType(from), CanonicalType(to)
	if from == to {
		return true
	}

	if fromEnum, ok := parseEnum(from); ok {
		toEnum, ok := parseEnum(to)
		return ok && isSubset(fromEnum, toEnum)
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range wideningEdges[current] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// WiderType returns whichever of a and b the other widens to, spelled as
// given. ok is false when the types are incomparable.
func WiderType(a, b string) (string, bool) {
	if Widens(a, b) {
		return b, true
	}
	if Widens(b, a) {
		return a, true
	}
	return "", false
}

func parseEnum(t string) ([]string, bool) {
	if len(t) < len("enum()") || !strings.EqualFold(t[:len("enum(")], "enum(") || !strings.HasSuffix(t, ")") {
		return nil, false
	}
	body := t[len("enum(") : len(t)-1]
	var members []string
	for _, m := range strings.Split(body, ",") {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	return models.NormalizeSet(members), true
}

func isSubset(a, b []string) bool {
	for _, m := range a {
		i := sort.SearchStrings(b, m)
		if i >= len(b) || b[i] != m {
			return false
		}
	}
	return true
}

// cardinalityExpansions are the single-step expansions of a link's
// multiplicity: exactly one end goes from ONE to MANY.
var cardinalityExpansions = map[models.Cardinality][]models.Cardinality{
	models.OneToOne:  {models.OneToMany, models.ManyToOne},
	models.OneToMany: {models.ManyToMany},
	models.ManyToOne: {models.ManyToMany},
}

// ExpandsTo returns true if to is a single-step expansion of from
func ExpandsTo(from, to models.Cardinality) bool {
	for _, c := range cardinalityExpansions[from] {
		if c == to {
			return true
		}
	}
	return false
}

// MorePermissive returns the cardinality that is a single-step expansion
// of the other. ok is false for contractions in both directions, two-step
// jumps and cross-direction pairs.
func MorePermissive(a, b models.Cardinality) (models.Cardinality, bool) {
	if ExpandsTo(a, b) {
		return b, true
	}
	if ExpandsTo(b, a) {
		return a, true
	}
	return "", false
}
