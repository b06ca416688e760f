package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/cache"
	"github.com/kilupskalvis/ovc/internal/core"
	"github.com/kilupskalvis/ovc/internal/models"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <branch>",
	Short: "Merge a branch into another",
	Long: `Merge the specified branch into the target branch (the default branch
unless --into is given).

Conflicts are classified by severity. With --auto-resolve, safe conflicts
such as type widening are resolved automatically. If any conflict remains,
nothing is committed.

Examples:
  ovc merge feature                      # Merge 'feature' into the default branch
  ovc merge feature --into release       # Merge 'feature' into 'release'
  ovc merge --auto-resolve feature       # Resolve widening changes automatically
  ovc merge --strategy squash feature    # Commit the merge as a single version
  ovc merge --dry-run --json feature     # Print the conflict report only`,
	Args: cobra.ExactArgs(1),
	Run:  runMerge,
}

var (
	mergeInto        string
	mergeMessage     string
	mergeAuthor      string
	mergeStrategy    string
	mergeAutoResolve bool
	mergeDryRun      bool
	mergeJSON        bool
)

func init() {
	mergeCmd.Flags().StringVar(&mergeInto, "into", "", "Target branch (defaults to the default branch)")
	mergeCmd.Flags().StringVarP(&mergeMessage, "message", "m", "", "Custom merge commit message")
	mergeCmd.Flags().StringVar(&mergeAuthor, "author", "", "Merge author (defaults to config)")
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", "merge", "Merge strategy (merge, squash, rebase)")
	mergeCmd.Flags().BoolVar(&mergeAutoResolve, "auto-resolve", false, "Resolve safe conflicts automatically")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Run the merge without committing")
	mergeCmd.Flags().BoolVar(&mergeJSON, "json", false, "Print the merge result as JSON")
	mergeCmd.RegisterFlagCompletionFunc("into", completeBranches(1))
	mergeCmd.RegisterFlagCompletionFunc("strategy", cobra.FixedCompletions(
		[]string{"merge", "squash", "rebase"}, cobra.ShellCompDirectiveNoFileComp))
}

func runMerge(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext()
	defer c.Close()

	backend, closer, err := cache.Open(ctx, c.Config)
	if err != nil {
		exitError("failed to open merge cache: %v", err)
	}
	defer closer.Close()

	o := core.NewOrchestrator(c.store(),
		core.WithLogger(c.Logger),
		core.WithCache(core.NewResultCache(backend, c.Logger)),
		core.WithMaxAttempts(c.Config.Merge.MaxAttempts),
		core.WithWorkers(c.Config.Merge.Workers),
	)

	target := mergeInto
	if target == "" {
		target = c.Config.DefaultBranch
	}
	req := core.MergeRequest{
		Source:      args[0],
		Target:      target,
		Author:      c.author(mergeAuthor),
		Message:     mergeMessage,
		Strategy:    models.MergeStrategy(strings.ToUpper(mergeStrategy)),
		AutoResolve: mergeAutoResolve || c.Config.Merge.AutoResolve,
		DryRun:      mergeDryRun,
	}

	result, _ := o.Merge(ctx, req)

	if mergeJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			exitError("failed to encode result: %v", err)
		}
		fmt.Println(string(data))
		if result.Status == models.StatusConflict || result.Status == models.StatusError {
			os.Exit(1)
		}
		return
	}

	printMergeResult(result, req)
}

func printMergeResult(result *models.MergeResult, req core.MergeRequest) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	switch result.Status {
	case models.StatusError:
		exitError("%v", result.Error)
	case models.StatusNoChanges:
		fmt.Println("Already up to date.")
		return
	case models.StatusConflict:
		printConflicts(result)
		red.Printf("\nAutomatic merge failed: %d unresolved conflict(s).\n", len(result.Unresolved))
		if !req.AutoResolve && hasAutoResolvable(result.Unresolved) {
			fmt.Println("Some conflicts can be resolved with --auto-resolve.")
		}
		os.Exit(1)
	}

	if req.DryRun {
		green.Printf("Merge of '%s' into %s would succeed.\n", req.Source, req.Target)
	} else {
		fmt.Printf("Merge made by the '%s' strategy.\n", strings.ToLower(string(result.Strategy)))
		fmt.Printf("  Merge commit: %s\n", shortID(result.MergeCommitID))
	}
	if result.AutoResolved {
		yellow.Printf("Auto-resolved %d conflict(s)\n", len(result.Conflicts)-len(result.Unresolved))
		for _, conflict := range result.Conflicts {
			fmt.Println("  " + formatConflict(conflict))
		}
	}
}

func printConflicts(result *models.MergeResult) {
	color.New(color.FgRed, color.Bold).Println("CONFLICTS:")
	for _, conflict := range result.Unresolved {
		fmt.Println("  " + formatConflict(conflict))
	}
}

func hasAutoResolvable(conflicts []models.Conflict) bool {
	for _, c := range conflicts {
		if c.Header().AutoResolvable {
			return true
		}
	}
	return false
}

// formatConflict renders a conflict as "<severity> <kind> <location>: a vs b"
func formatConflict(c models.Conflict) string {
	h := c.Header()
	location := h.EntityID
	if h.FieldID != "" {
		location += "." + h.FieldID
	}

	var sev string
	switch h.Severity {
	case models.SeverityInfo:
		sev = color.CyanString("%-5s", h.Severity)
	case models.SeverityWarn:
		sev = color.YellowString("%-5s", h.Severity)
	default:
		sev = color.RedString("%-5s", h.Severity)
	}

	line := fmt.Sprintf("%s %s %s", sev, c.Kind(), location)
	if a, b := c.Values(); a != "" || b != "" {
		line += fmt.Sprintf(": %s vs %s", a, b)
	}
	if s, ok := c.Suggestion(); ok {
		line += fmt.Sprintf(" (suggest %s)", s)
	}
	return line
}
