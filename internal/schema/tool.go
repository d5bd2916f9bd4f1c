package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all model-callable tools must satisfy.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	// Execute runs the tool. A returned error is classified by the tool loop:
	// timeouts abort the run, anything else is reported back to the model.
	Execute(ctx context.Context, params map[string]any) (string, error)
}
