package models

import (
	"fmt"
	"strings"
)

// ConflictKind identifies the variant of a Conflict
type ConflictKind string

const (
	ConflictPropertyType       ConflictKind = "PROPERTY_TYPE"
	ConflictCardinality        ConflictKind = "CARDINALITY"
	ConflictConstraint         ConflictKind = "CONSTRAINT_CONFLICT"
	ConflictDeleteModify       ConflictKind = "DELETE_MODIFY"
	ConflictCircularDependency ConflictKind = "CIRCULAR_DEPENDENCY"
	ConflictInterfaceMismatch  ConflictKind = "INTERFACE_MISMATCH"
)

// AllConflictKinds lists every conflict variant in report order
var AllConflictKinds = []ConflictKind{
	ConflictPropertyType,
	ConflictCardinality,
	ConflictConstraint,
	ConflictDeleteModify,
	ConflictCircularDependency,
	ConflictInterfaceMismatch,
}

// Severity orders conflicts by impact. The zero value means "no conflict".
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityBlock
)

var severityNames = []string{"NONE", "INFO", "WARN", "ERROR", "BLOCK"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	for i, name := range severityNames {
		if strings.EqualFold(name, string(text)) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// ConflictHeader holds the fields shared by every conflict variant
type ConflictHeader struct {
	Severity       Severity `json:"severity"`
	EntityID       string   `json:"entity_id"`
	FieldID        string   `json:"field_id,omitempty"`
	AutoResolvable bool     `json:"auto_resolvable"`
	// OnInterface is set when EntityID names an interface whose member FieldID conflicts
	OnInterface bool `json:"on_interface,omitempty"`
}

// Conflict is a closed sum type over the variants declared below. Code that
// switches on it should panic on an unknown variant.
type Conflict interface {
	Kind() ConflictKind
	Header() ConflictHeader
	// Values returns the two discrepant values in display form (source, target)
	Values() (a, b string)
	// Suggestion returns the suggested resolution in display form
	Suggestion() (string, bool)
	conflict()
}

// Header returns the shared conflict fields
func (h ConflictHeader) Header() ConflictHeader { return h }

func (ConflictHeader) conflict() {}

// ConflictKey returns the identity of a conflict used for ordering and de-duplication
func ConflictKey(c Conflict) string {
	h := c.Header()
	key := h.EntityID + "\x00" + h.FieldID + "\x00" + string(c.Kind())
	if h.OnInterface {
		key += "\x00interface"
	}
	return key
}

// PropertyTypeConflict reports a property whose type differs between branches
type PropertyTypeConflict struct {
	ConflictHeader
	TypeA     string `json:"type_a"`
	TypeB     string `json:"type_b"`
	RequiredA bool   `json:"required_a,omitempty"`
	RequiredB bool   `json:"required_b,omitempty"`
	Suggested string `json:"suggested,omitempty"`
}

func (c *PropertyTypeConflict) Kind() ConflictKind { return ConflictPropertyType }
func (c *PropertyTypeConflict) Values() (string, string) { return c.TypeA, c.TypeB }
func (c *PropertyTypeConflict) Suggestion() (string, bool) {
	return c.Suggested, c.Suggested != ""
}

// CardinalityConflict reports a link whose cardinality differs between branches
type CardinalityConflict struct {
	ConflictHeader
	A         Cardinality `json:"a"`
	B         Cardinality `json:"b"`
	Suggested Cardinality `json:"suggested,omitempty"`
}

func (c *CardinalityConflict) Kind() ConflictKind { return ConflictCardinality }
func (c *CardinalityConflict) Values() (string, string) { return string(c.A), string(c.B) }
func (c *CardinalityConflict) Suggestion() (string, bool) {
	return string(c.Suggested), c.Suggested != ""
}

// ConstraintConflict reports constraint sets changed differently on both branches
type ConstraintConflict struct {
	ConflictHeader
	A      []Constraint `json:"a"`
	B      []Constraint `json:"b"`
	Merged []Constraint `json:"merged,omitempty"`
}

func (c *ConstraintConflict) Kind() ConflictKind { return ConflictConstraint }
func (c *ConstraintConflict) Values() (string, string) {
	return FormatConstraints(c.A), FormatConstraints(c.B)
}
func (c *ConstraintConflict) Suggestion() (string, bool) {
	if !c.AutoResolvable {
		return "", false
	}
	return FormatConstraints(c.Merged), true
}

// DeleteScope says what kind of element a delete/modify conflict is about
type DeleteScope string

const (
	ScopeEntity    DeleteScope = "entity"
	ScopeProperty  DeleteScope = "property"
	ScopeLink      DeleteScope = "link"
	ScopeInterface DeleteScope = "interface"
)

// Side names a branch of a merge
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
	SideBoth   Side = "both"
)

// DeleteModifyConflict reports an element deleted on one branch while the
// other branch modified or referenced it
type DeleteModifyConflict struct {
	ConflictHeader
	Scope     DeleteScope `json:"scope"`
	DeletedOn Side        `json:"deleted_on"`
	Detail    string      `json:"detail,omitempty"`
}

func (c *DeleteModifyConflict) Kind() ConflictKind { return ConflictDeleteModify }
func (c *DeleteModifyConflict) Values() (string, string) {
	switch c.DeletedOn {
	case SideSource:
		return "deleted", "modified"
	case SideTarget:
		return "modified", "deleted"
	}
	return "changed", "changed"
}
func (c *DeleteModifyConflict) Suggestion() (string, bool) { return "", false }

// Strategies suggested for breaking a circular dependency
const (
	StrategyBreakCycle         = "break-cycle"
	StrategyIntroduceInterface = "introduce-interface"
)

// CircularDependencyConflict reports a cycle of ownership/containment links
type CircularDependencyConflict struct {
	ConflictHeader
	Cycle      []string `json:"cycle"`
	LinkIDs    []string `json:"link_ids"`
	Strategies []string `json:"strategies"`
}

func (c *CircularDependencyConflict) Kind() ConflictKind { return ConflictCircularDependency }
func (c *CircularDependencyConflict) Values() (string, string) {
	return strings.Join(c.Cycle, " -> "), strings.Join(c.LinkIDs, ",")
}
func (c *CircularDependencyConflict) Suggestion() (string, bool) { return "", false }

// MismatchReason says why an interface member does not conform
type MismatchReason string

const (
	MismatchMissing      MismatchReason = "missing"
	MismatchIncompatible MismatchReason = "incompatible"
	MismatchUndefined    MismatchReason = "undefined_interface"
)

// InterfaceMismatchConflict reports an entity that does not satisfy an interface it declares
type InterfaceMismatchConflict struct {
	ConflictHeader
	InterfaceID  string         `json:"interface_id"`
	Member       string         `json:"member,omitempty"`
	Reason       MismatchReason `json:"reason"`
	ExpectedType string         `json:"expected_type,omitempty"`
	ActualType   string         `json:"actual_type,omitempty"`
}

func (c *InterfaceMismatchConflict) Kind() ConflictKind { return ConflictInterfaceMismatch }
func (c *InterfaceMismatchConflict) Values() (string, string) {
	return c.ActualType, c.ExpectedType
}
func (c *InterfaceMismatchConflict) Suggestion() (string, bool) { return "", false }

// FormatConstraints renders a constraint list for reports
func FormatConstraints(cs []Constraint) string {
	if len(cs) == 0 {
		return "[]"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		switch c.Kind {
		case ConstraintEnum:
			parts[i] = fmt.Sprintf("enum(%s)", strings.Join(c.Values, ","))
		case ConstraintPattern:
			parts[i] = fmt.Sprintf("pattern(%s)", c.Pattern)
		case ConstraintUnique:
			parts[i] = "unique"
		default:
			parts[i] = fmt.Sprintf("%s=%g", c.Kind, c.Value)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
