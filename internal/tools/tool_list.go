package tools

import (
	"encoding/json"
	"sort"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

// ToolList is the static name → tool lookup table handed to the tool loop.
// The set is fixed at construction; the model can only reach tools listed here.
type ToolList struct {
	tools map[string]schema.Tool
}

func NewToolList(ts ...schema.Tool) *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.tools[t.Name()] = t
	}

	return &list
}

// Get returns the tool with the given name, or nil if not found.
func (r *ToolList) Get(name string) schema.Tool {
	if r == nil {
		return nil
	}
	return r.tools[name]
}

// Len returns the number of registered tools.
func (r *ToolList) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Names returns the registered tool names in sorted order.
func (r *ToolList) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tool definitions in OpenAI function-calling format,
// ordered by name so requests are reproducible.
func (r *ToolList) Definitions() []map[string]any {
	names := r.Names()
	list := make([]map[string]any, 0, len(names))
	for _, n := range names {
		t := r.tools[n]
		var params any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}
