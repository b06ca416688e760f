package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [ref]",
	Short: "Show version history",
	Long:  `Display the first-parent history of a branch (the default branch unless given).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLog,
}

var (
	logOneline bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each version on a single line")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of versions to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ref := c.Config.DefaultBranch
	if len(args) > 0 {
		ref = args[0]
	}

	versions, err := c.Store.Log(cmd.Context(), ref, logLimit)
	if err != nil {
		exitError("failed to get log: %v", err)
	}

	yellow := color.New(color.FgYellow)
	magenta := color.New(color.FgMagenta)

	for _, v := range versions {
		if logOneline {
			yellow.Printf("%s ", v.ShortID())
			if v.IsMergeVersion() {
				magenta.Print("[merge] ")
			}
			fmt.Println(v.Message)
			continue
		}

		yellow.Printf("version %s", v.VersionID)
		fmt.Println()
		if v.IsMergeVersion() {
			fmt.Printf("Merge:  %s %s\n", shortID(v.AncestorVersionID), shortID(v.MergeParentVersionID))
		}
		if v.Author != "" {
			fmt.Printf("Author: %s\n", v.Author)
		}
		fmt.Printf("Date:   %s\n", v.CreatedAt.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Printf("\n    %s\n", v.Message)
		fmt.Printf("    (%d entities, %d links)\n\n", len(v.Entities), len(v.Links))
	}
}
