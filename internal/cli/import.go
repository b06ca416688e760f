package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/weaviate"
)

var importCmd = &cobra.Command{
	Use:   "import <branch>",
	Short: "Commit the schema of a Weaviate instance",
	Long: `Read the class definitions of a running Weaviate instance and commit
them on a branch. Classes become entities, primitive properties become entity
properties and cross-references become links.`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

var (
	importURL     string
	importMessage string
)

func init() {
	importCmd.Flags().StringVar(&importURL, "url", "", "Weaviate server URL (defaults to config)")
	importCmd.Flags().StringVarP(&importMessage, "message", "m", "", "Commit message")
}

func runImport(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext()
	defer c.Close()

	url := importURL
	if url == "" {
		url = c.Config.WeaviateURL
	}
	if url == "" {
		exitError("no Weaviate URL; pass --url or set weaviate_url in .ovc/config")
	}

	client, err := weaviate.NewClient(url)
	if err != nil {
		exitError("%v", err)
	}
	if err := client.Ping(ctx); err != nil {
		exitError("%v", err)
	}
	if version, err := client.GetServerVersion(ctx); err == nil {
		c.Logger.Info("connected to weaviate", "url", url, "version", version.Version)
	}

	schema, err := weaviate.Import(ctx, client)
	if err != nil {
		exitError("failed to import schema: %v", err)
	}

	message := importMessage
	if message == "" {
		message = fmt.Sprintf("Import schema from %s", url)
	}
	id, err := c.Store.CommitSchema(ctx, args[0], schema, c.author(""), message)
	if err != nil {
		exitError("%v", err)
	}

	color.New(color.FgGreen).Printf("[%s %s] %s\n", args[0], shortID(id), message)
	fmt.Printf(" %d classes, %d references\n", len(schema.Entities), len(schema.Links))
}
