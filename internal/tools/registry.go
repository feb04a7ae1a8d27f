package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/minibot-ai/minibot/internal/providers"
)

// Registry maps tool names to instances. Execute never raises: failures
// come back as error strings so the agent loop can feed them to the LLM.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tool schemas in the OpenAI function shape,
// ordered by name for a stable prompt.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		defs = append(defs, Definition(r.tools[name]))
	}
	return defs
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetContext forwards the current turn's conversation to every
// context-aware tool.
func (r *Registry) SetContext(channel, chatID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		if ca, ok := t.(ContextAware); ok {
			ca.SetContext(channel, chatID)
		}
	}
}

// Execute validates args against the tool's schema and runs it.
// The returned string is always suitable as a tool-result message.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	tool := r.Get(name)
	if tool == nil {
		return fmt.Sprintf("Error: Tool '%s' not found", name)
	}

	if errs := ValidateParams(tool.Parameters(), args); len(errs) > 0 {
		return fmt.Sprintf("Error: Invalid parameters for tool '%s': %s", name, strings.Join(errs, "; "))
	}

	result, err := safeExecute(ctx, tool, args)
	if err != nil {
		slog.Warn("tool execution failed", "tool", name, "error", err)
		return fmt.Sprintf("Error executing %s: %s", name, err.Error())
	}
	return result
}

// safeExecute shields the loop from panicking tool bodies.
func safeExecute(ctx context.Context, tool Tool, args map[string]interface{}) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
