package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/graphstore"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for ovc. Branch arguments of merge,
diff, log, branch, commit and import complete from the repository in the
working directory.

  $ source <(ovc completion bash)
  $ source <(ovc completion zsh)
  $ ovc completion fish | source
  PS> ovc completion powershell | Out-String | Invoke-Expression
`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)

	// Positional branch arguments per command
	mergeCmd.ValidArgsFunction = completeBranches(1)
	diffCmd.ValidArgsFunction = completeBranches(2)
	logCmd.ValidArgsFunction = completeBranches(1)
	branchCmd.ValidArgsFunction = completeBranches(2)
	importCmd.ValidArgsFunction = completeBranches(1)
	commitCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return matchBranches(branchNames(cmd.Context()), args, toComplete), cobra.ShellCompDirectiveNoFileComp
		}
		if len(args) == 1 {
			return []string{"json", "toml"}, cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeBranches completes up to max positional arguments with branch names
func completeBranches(max int) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) >= max {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return matchBranches(branchNames(cmd.Context()), args, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// matchBranches keeps the names starting with toComplete that are not
// already on the command line
func matchBranches(names, args []string, toComplete string) []string {
	used := make(map[string]bool, len(args))
	for _, a := range args {
		used[a] = true
	}
	var out []string
	for _, name := range names {
		if !used[name] && strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out
}

// branchNames lists the branches of the repository in the working
// directory. Completion stays silent on any failure.
func branchNames(ctx context.Context) []string {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	st, err := graphstore.NewBboltStore(cfg.DatabasePath())
	if err != nil {
		return nil
	}
	defer st.Close()

	branches, err := st.ListBranches(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return names
}
