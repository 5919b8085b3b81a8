package tools

import (
	"context"
	"encoding/json"
)

// Tool is a locally implemented capability the agent can expose to the
// model alongside tools discovered from MCP servers.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() json.RawMessage
	Run(ctx context.Context, args map[string]any) (string, error)
}
