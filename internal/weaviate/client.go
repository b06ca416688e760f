// Package weaviate imports class definitions from a running Weaviate instance
// so they can be committed as ontology schema versions.
package weaviate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// ServerVersion holds parsed Weaviate version info
type ServerVersion struct {
	Version string // e.g., "1.25.0"
	Major   int
	Minor   int
	Patch   int
}

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// parseVersion parses a version string like "1.25.0" into ServerVersion
func parseVersion(version string) (*ServerVersion, error) {
	matches := versionPattern.FindStringSubmatch(version)
	if len(matches) < 4 {
		return nil, fmt.Errorf("invalid version format: %s", version)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &ServerVersion{
		Version: version,
		Major:   major,
		Minor:   minor,
		Patch:   patch,
	}, nil
}

// Client reads the schema of a Weaviate instance
type Client struct {
	client *weaviate.Client
	url    string
}

// NewClient creates a new Weaviate client
func NewClient(url string) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}

	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		cfg.Host = rest
	} else if rest, ok := strings.CutPrefix(url, "https://"); ok {
		cfg.Host = rest
		cfg.Scheme = "https"
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Client{client: client, url: url}, nil
}

// URL returns the address the client was created for
func (c *Client) URL() string {
	return c.url
}

// Ping checks if Weaviate is reachable
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Weaviate: %w", err)
	}
	if !live {
		return fmt.Errorf("weaviate is not live")
	}
	return nil
}

// GetServerVersion fetches and parses the Weaviate server version
func (c *Client) GetServerVersion(ctx context.Context) (*ServerVersion, error) {
	meta, err := c.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server metadata: %w", err)
	}
	return parseVersion(meta.Version)
}

// GetClasses retrieves every class definition of the schema
func (c *Client) GetClasses(ctx context.Context) ([]*Class, error) {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	classes := make([]*Class, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		classes = append(classes, fromWeaviateClass(class))
	}
	return classes, nil
}

func fromWeaviateClass(class *weaviatemodels.Class) *Class {
	c := &Class{
		Name:        class.Class,
		Description: class.Description,
		Properties:  make([]*Property, 0, len(class.Properties)),
	}
	for _, prop := range class.Properties {
		c.Properties = append(c.Properties, &Property{
			Name:        prop.Name,
			DataType:    prop.DataType,
			Description: prop.Description,
		})
	}
	return c
}
