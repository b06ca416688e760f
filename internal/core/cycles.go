package core

import (
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Detect finds circular dependencies among ownership and containment links.
// Every elementary cycle is reported once, starting at its smallest entity
// ID, so the result does not depend on link order or traversal start.
// Parallel links between the same entities form distinct cycles.
func Detect(schema *models.SchemaVersion) []models.Conflict {
	var (
		ids      []string
		index    = make(map[string]int64)
		between  = make(map[[2]string][]string) // structural link IDs per (source, target)
		selfLoop []string
	)
	node := func(id string) {
		if _, ok := index[id]; !ok {
			index[id] = int64(len(ids))
			ids = append(ids, id)
		}
	}

	g := simple.NewDirectedGraph()
	for _, id := range schema.LinkIDs() {
		link := schema.Links[id]
		if !link.Kind.Structural() {
			continue
		}
		if link.Source == link.Target {
			selfLoop = append(selfLoop, id)
			continue
		}
		node(link.Source)
		node(link.Target)
		pair := [2]string{link.Source, link.Target}
		if len(between[pair]) == 0 {
			g.SetEdge(g.NewEdge(simple.Node(index[link.Source]), simple.Node(index[link.Target])))
		}
		between[pair] = append(between[pair], id)
	}

	seen := make(map[string]bool)
	var out []models.Conflict
	report := func(cycle, linkIDs []string) {
		cycle, linkIDs = rotateCycle(cycle, linkIDs)
		key := cycleKey(cycle, linkIDs)
		if !seen[key] {
			seen[key] = true
			out = append(out, cycleConflict(cycle, linkIDs))
		}
	}

	for _, id := range selfLoop {
		report([]string{schema.Links[id].Source}, []string{id})
	}

	for _, nodes := range topo.DirectedCyclesIn(g) {
		// the first node is repeated at the end
		if len(nodes) > 1 && nodes[0].ID() == nodes[len(nodes)-1].ID() {
			nodes = nodes[:len(nodes)-1]
		}
		cycle := make([]string, len(nodes))
		for i, n := range nodes {
			cycle[i] = ids[n.ID()]
		}
		choices := make([][]string, len(cycle))
		for i := range cycle {
			choices[i] = between[[2]string{cycle[i], cycle[(i+1)%len(cycle)]}]
		}
		for _, linkIDs := range linkCombinations(choices) {
			report(cycle, linkIDs)
		}
	}

	SortConflicts(out)
	return out
}

// linkCombinations expands a cycle over entities into one link path per
// combination of parallel links
func linkCombinations(choices [][]string) [][]string {
	out := [][]string{nil}
	for _, options := range choices {
		next := make([][]string, 0, len(out)*len(options))
		for _, prefix := range out {
			for _, id := range options {
				path := make([]string, len(prefix), len(prefix)+1)
				copy(path, prefix)
				next = append(next, append(path, id))
			}
		}
		out = next
	}
	return out
}

func cycleConflict(cycle, linkIDs []string) *models.CircularDependencyConflict {
	return &models.CircularDependencyConflict{
		ConflictHeader: models.ConflictHeader{
			Severity: models.SeverityError,
			EntityID: cycle[0],
			FieldID:  strings.Join(linkIDs, ","),
		},
		Cycle:      cycle,
		LinkIDs:    linkIDs,
		Strategies: []string{models.StrategyBreakCycle, models.StrategyIntroduceInterface},
	}
}

// rotateCycle rotates a cycle and its links so the smallest entity comes first
func rotateCycle(cycle, linkIDs []string) ([]string, []string) {
	first := 0
	for i := range cycle {
		if cycle[i] < cycle[first] {
			first = i
		}
	}
	rc := make([]string, 0, len(cycle))
	rl := make([]string, 0, len(linkIDs))
	rc = append(append(rc, cycle[first:]...), cycle[:first]...)
	rl = append(append(rl, linkIDs[first:]...), linkIDs[:first]...)
	return rc, rl
}

func cycleKey(cycle, linkIDs []string) string {
	return strings.Join(cycle, "\x00") + "\x01" + strings.Join(linkIDs, "\x00")
}

// cycleKeys returns the identities of the cycles in conflicts
func cycleKeys(conflicts []models.Conflict) map[string]bool {
	keys := make(map[string]bool)
	for _, c := range conflicts {
		if cd, ok := c.(*models.CircularDependencyConflict); ok {
			keys[cycleKey(cd.Cycle, cd.LinkIDs)] = true
		}
	}
	return keys
}
