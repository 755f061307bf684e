package harness

import (
	ports "github.com/ZanzyTHEbar/toolchat/toolchat/generation/harness/ports"
)

// Registry maps tool names to implementations and keeps registration order
// for the declarations advertised to the model. It is filled once at
// startup and read-only afterwards.
type Registry struct {
	tools map[string]ports.Tool
	order []string
}

// NewRegistry registers the given tools in order.
func NewRegistry(tools ...ports.Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]ports.Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool; a second tool with the same name is rejected.
func (r *Registry) Register(tool ports.Tool) error {
	if tool == nil {
		return &InvalidToolError{Reason: "tool is nil"}
	}
	if tool.Name() == "" {
		return &InvalidToolError{Reason: "tool has no name"}
	}
	if r.tools == nil {
		r.tools = make(map[string]ports.Tool)
	}
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (ports.Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Declarations returns the tool specs in registration order.
func (r *Registry) Declarations() []ports.ToolSpec {
	specs := make([]ports.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, ports.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			JSONSchema:  t.Schema(),
		})
	}
	return specs
}
