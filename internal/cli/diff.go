package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var diffCmd = &cobra.Command{
	Use:   "diff <source> <target>",
	Short: "Show the three-way diff of two branches",
	Long: `Show how source and target changed relative to their merge base.
Each line names the element and the branch (or branches) that changed it.`,
	Args: cobra.ExactArgs(2),
	Run:  runDiff,
}

var diffStat bool

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Show counts per change kind only")
}

func runDiff(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext()
	defer c.Close()

	st := c.store()
	source, err := st.GetSchema(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	target, err := st.GetSchema(ctx, args[1])
	if err != nil {
		exitError("%v", err)
	}
	base, err := core.FindMergeBase(ctx, st, source, target)
	if err != nil {
		exitError("%v", err)
	}
	ds, err := core.Diff(base, source, target)
	if err != nil {
		exitError("%v", err)
	}

	if !ds.HasChanges() {
		fmt.Println("No changes")
		return
	}

	fmt.Printf("merge base %s\n", shortID(base.VersionID))
	if diffStat {
		for _, kind := range deltaKinds {
			if n := ds.Count(kind); n > 0 {
				fmt.Printf(" %3d %s\n", n, kind)
			}
		}
		return
	}
	for _, d := range ds.Deltas {
		fmt.Println(formatDelta(d))
	}
}

var deltaKinds = []core.DeltaKind{
	core.DeltaAddedInSource, core.DeltaAddedInTarget,
	core.DeltaModifiedInSource, core.DeltaModifiedInTarget, core.DeltaModifiedInBoth,
	core.DeltaDeletedInSource, core.DeltaDeletedInTarget,
}

// formatDelta renders one delta as a single line
func formatDelta(d *core.Delta) string {
	name := string(d.Scope) + " " + d.ID
	if d.Scope == models.ScopeProperty {
		name = fmt.Sprintf("property %s.%s", d.ID, d.Field)
	}

	var marker string
	switch d.Kind {
	case core.DeltaAddedInSource, core.DeltaAddedInTarget:
		marker = color.GreenString("+")
	case core.DeltaDeletedInSource, core.DeltaDeletedInTarget:
		marker = color.RedString("-")
	case core.DeltaModifiedInBoth:
		marker = color.MagentaString("!")
	default:
		marker = color.YellowString("~")
	}
	return fmt.Sprintf("%s %-40s %s", marker, name, d.Kind)
}
