package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/kilupskalvis/ovc/internal/models"
)

// constraintOrder fixes the output order of merged constraint sets
var constraintOrder = map[models.ConstraintKind]int{
	models.ConstraintMin:       0,
	models.ConstraintMax:       1,
	models.ConstraintMinLength: 2,
	models.ConstraintMaxLength: 3,
	models.ConstraintEnum:      4,
	models.ConstraintPattern:   5,
	models.ConstraintUnique:    6,
}

// NormalizeConstraints returns a sorted copy with enum members sorted, so
// that two lists describing the same set compare equal.
func NormalizeConstraints(cs []models.Constraint) []models.Constraint {
	if len(cs) == 0 {
		return nil
	}
	out := models.CloneConstraints(cs)
	for i := range out {
		if out[i].Kind == models.ConstraintEnum {
			out[i].Values = models.NormalizeSet(out[i].Values)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return constraintLess(out[i], out[j])
	})
	return out
}

func constraintLess(a, b models.Constraint) bool {
	if oa, ob := constraintOrder[a.Kind], constraintOrder[b.Kind]; oa != ob {
		return oa < ob
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	if a.Pattern != b.Pattern {
		return a.Pattern < b.Pattern
	}
	return fmt.Sprint(a.Values) < fmt.Sprint(b.Values)
}

// MergeConstraints returns the conjunction of two constraint sets and
// whether it can be satisfied by at least one value.
func MergeConstraints(a, b []models.Constraint) ([]models.Constraint, bool) {
	var (
		hasMin, hasMax, hasMinLen, hasMaxLen, hasEnum, unique bool

		minV, minLen = math.Inf(-1), math.Inf(-1)
		maxV, maxLen = math.Inf(1), math.Inf(1)
		enum         []string
		patterns     = make(map[string]bool)
		others       = make(map[string]models.Constraint)
	)

	for _, c := range append(append([]models.Constraint{}, a...), b...) {
		switch c.Kind {
		case models.ConstraintMin:
			hasMin = true
			minV = math.Max(minV, c.Value)
		case models.ConstraintMax:
			hasMax = true
			maxV = math.Min(maxV, c.Value)
		case models.ConstraintMinLength:
			hasMinLen = true
			minLen = math.Max(minLen, c.Value)
		case models.ConstraintMaxLength:
			hasMaxLen = true
			maxLen = math.Min(maxLen, c.Value)
		case models.ConstraintEnum:
			values := models.NormalizeSet(c.Values)
			if !hasEnum {
				enum = values
				hasEnum = true
			} else {
				enum = intersect(enum, values)
			}
		case models.ConstraintPattern:
			patterns[c.Pattern] = true
		case models.ConstraintUnique:
			unique = true
		default:
			// Unknown kinds are opaque: kept, never reasoned about
			others[fmt.Sprintf("%s|%g|%s|%v", c.Kind, c.Value, c.Pattern, c.Values)] = c
		}
	}

	var merged []models.Constraint
	if hasMin {
		merged = append(merged, models.Constraint{Kind: models.ConstraintMin, Value: minV})
	}
	if hasMax {
		merged = append(merged, models.Constraint{Kind: models.ConstraintMax, Value: maxV})
	}
	if hasMinLen {
		merged = append(merged, models.Constraint{Kind: models.ConstraintMinLength, Value: minLen})
	}
	if hasMaxLen {
		merged = append(merged, models.Constraint{Kind: models.ConstraintMaxLength, Value: maxLen})
	}
	if hasEnum {
		merged = append(merged, models.Constraint{Kind: models.ConstraintEnum, Values: enum})
	}
	for p := range patterns {
		merged = append(merged, models.Constraint{Kind: models.ConstraintPattern, Pattern: p})
	}
	if unique {
		merged = append(merged, models.Constraint{Kind: models.ConstraintUnique})
	}
	for _, c := range others {
		merged = append(merged, c)
	}

	satisfiable := minV <= maxV && minLen <= maxLen && maxLen >= 0 && (!hasEnum || len(enum) > 0)
	return NormalizeConstraints(merged), satisfiable
}

func intersect(a, b []string) []string {
	var out []string
	for _, v := range a {
		i := sort.SearchStrings(b, v)
		if i < len(b) && b[i] == v {
			out = append(out, v)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}
