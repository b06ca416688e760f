package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch [name] [start-point]",
	Short: "List, create, or delete branches",
	Long: `Manage branches in the OVC repository.

Without arguments, lists all branches.
With a name argument, creates a new branch at the default branch head.

Examples:
  ovc branch                   # List all branches
  ovc branch feature           # Create 'feature' at the default branch
  ovc branch feature abc123    # Create 'feature' at version abc123
  ovc branch -d feature        # Delete 'feature'`,
	Args: cobra.MaximumNArgs(2),
	Run:  runBranch,
}

var branchDelete bool

func init() {
	branchCmd.Flags().BoolVarP(&branchDelete, "delete", "d", false, "Delete a branch")
}

func runBranch(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext()
	defer c.Close()

	st := c.Store

	// Delete branch
	if branchDelete {
		if len(args) == 0 {
			exitError("branch name required for deletion")
		}
		if args[0] == c.Config.DefaultBranch {
			exitError("cannot delete the default branch '%s'", args[0])
		}
		if err := st.DeleteBranch(ctx, args[0]); err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Deleted branch '%s'\n", args[0])
		return
	}

	// Create branch
	if len(args) > 0 {
		name := args[0]
		startPoint := c.Config.DefaultBranch
		if len(args) > 1 {
			startPoint = args[1]
		}

		if err := st.CreateBranch(ctx, name, startPoint); err != nil {
			exitError("%v", err)
		}

		head, err := st.GetSchema(ctx, name)
		if err != nil {
			fmt.Printf("Created branch '%s'\n", name)
			return
		}
		fmt.Printf("Created branch '%s' at %s\n", name, shortID(head.VersionID))
		return
	}

	// List branches
	branches, err := st.ListBranches(ctx)
	if err != nil {
		exitError("failed to list branches: %v", err)
	}

	green := color.New(color.FgGreen)
	for _, branch := range branches {
		if branch.Name == c.Config.DefaultBranch {
			green.Printf("* %s %s\n", branch.Name, shortID(branch.VersionID))
		} else {
			fmt.Printf("  %s %s\n", branch.Name, shortID(branch.VersionID))
		}
	}
}
