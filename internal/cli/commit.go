package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/ovc/internal/models"
)

var commitCmd = &cobra.Command{
	Use:   "commit <branch> <schema-file>",
	Short: "Record a schema on a branch",
	Long: `Create a new version on a branch from a schema file.

The file replaces the branch's schema as a whole. JSON (.json) and TOML
(.toml) files are accepted, with top-level "entities", "links" and
"interfaces" tables keyed by ID.`,
	Args: cobra.ExactArgs(2),
	Run:  runCommit,
}

var (
	commitMessage string
	commitAuthor  string
)

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message (required)")
	commitCmd.Flags().StringVar(&commitAuthor, "author", "", "Commit author (defaults to config)")
	commitCmd.MarkFlagRequired("message")
}

// schemaFile is the on-disk form of a schema
type schemaFile struct {
	Entities   map[string]*models.EntityDef    `json:"entities" toml:"entities"`
	Links      map[string]*models.LinkDef      `json:"links" toml:"links"`
	Interfaces map[string]*models.InterfaceDef `json:"interfaces" toml:"interfaces"`
}

// readSchemaFile loads a schema from a .json or .toml file
func readSchemaFile(path string) (*models.SchemaVersion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	var f schemaFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported schema file %s (want .json or .toml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	s := &models.SchemaVersion{Entities: f.Entities, Links: f.Links, Interfaces: f.Interfaces}
	s.Normalize()
	return s, nil
}

func runCommit(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	branch, path := args[0], args[1]
	schema, err := readSchemaFile(path)
	if err != nil {
		exitError("%v", err)
	}

	id, err := c.Store.CommitSchema(cmd.Context(), branch, schema, c.author(commitAuthor), commitMessage)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("[%s %s] %s\n", branch, shortID(id), commitMessage)
	fmt.Printf(" %d entities, %d links, %d interfaces\n", len(schema.Entities), len(schema.Links), len(schema.Interfaces))
}
