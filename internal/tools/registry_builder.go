package tools

import "github.com/crystaldolphin/researchflow/internal/schema"

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce the ToolList handed to the research step.
type RegistryBuilder struct {
	tools []schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithTool adds a tool and returns the builder, enabling chaining.
// A later tool with the same name replaces an earlier one.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	b.tools = append(b.tools, tool)

	return b
}

// Build produces a ToolList from the accumulated tools.
func (b *RegistryBuilder) Build() *ToolList {
	return NewToolList(b.tools...)
}
