package weaviate

import "context"

// SchemaSource is the part of the Weaviate API the importer needs
type SchemaSource interface {
	GetClasses(ctx context.Context) ([]*Class, error)
}

// Verify that *Client implements SchemaSource at compile time
var _ SchemaSource = (*Client)(nil)

// MockSource is an in-memory SchemaSource for testing.
type MockSource struct {
	// Classes is the schema returned by GetClasses
	Classes []*Class
	// Err can be set to make GetClasses return an error
	Err error
}

// GetClasses returns the mock classes.
func (m *MockSource) GetClasses(_ context.Context) ([]*Class, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Classes, nil
}
