package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/config"
	"github.com/kilupskalvis/ovc/internal/graphstore"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new OVC repository",
	Long: `Initialize a new OVC repository in the current directory.
This creates a .ovc directory holding the configuration and the schema
history, with an empty root schema on the default branch.`,
	Run: runInit,
}

var (
	initAuthor string
	initBranch string
)

func init() {
	initCmd.Flags().StringVar(&initAuthor, "author", "", "Default author for commits and merges")
	initCmd.Flags().StringVar(&initBranch, "branch", "main", "Name of the default branch")
}

func runInit(cmd *cobra.Command, args []string) {
	cwd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	// Check if already initialized
	if _, err := config.FindOVCRoot(cwd); err == nil {
		exitError("ovc repository already exists")
	}

	author := initAuthor
	if author == "" {
		author = os.Getenv("USER")
	}

	cfg, err := config.Initialize(cwd, author)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}
	if initBranch != cfg.DefaultBranch {
		cfg.DefaultBranch = initBranch
		if err := cfg.Save(); err != nil {
			exitError("failed to save config: %v", err)
		}
	}

	st, err := graphstore.OpenBboltStore(cmd.Context(), cfg.DatabasePath(), retryConfig(cfg))
	if err != nil {
		exitError("failed to create store: %v", err)
	}
	defer st.Close()

	root, err := st.Initialize(cmd.Context(), cfg.DefaultBranch, author)
	if err != nil {
		exitError("failed to initialize store: %v", err)
	}

	fmt.Printf("Initialized empty OVC repository in %s\n", cfg.OVCPath())
	fmt.Printf("Branch '%s' at %s\n", cfg.DefaultBranch, shortID(root.VersionID))
}
