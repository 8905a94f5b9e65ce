package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrToolUnknown is returned when a name has never been registered
var ErrToolUnknown = errors.New("unknown tool")

// ErrToolExists rejects re-registration; the registry is append-only
var ErrToolExists = errors.New("tool already registered")

// Executor runs one tool call with decoded arguments. The returned map is
// handed to the model as the tool result.
type Executor func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Descriptor declares one tool: Params is a struct whose fields become the
// input schema (nil for a parameterless tool).
type Descriptor struct {
	Name        string
	Description string
	Params      interface{}
	Execute     Executor
}

// Registry holds the process-global tool set. Registration happens during
// startup; after that the registry is effectively immutable and safe for
// concurrent readers.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	order  []string
	logger arbor.ILogger
}

type registeredTool struct {
	schema  models.ToolSchema
	execute Executor
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		tools:  make(map[string]*registeredTool),
		logger: logger,
	}
}

// Register adds a tool. Additions only: registering an existing name fails.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if desc.Execute == nil {
		return fmt.Errorf("tool %s has no executor", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, desc.Name)
	}
	r.tools[desc.Name] = &registeredTool{
		schema: models.ToolSchema{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: SchemaFor(desc.Params),
		},
		execute: desc.Execute,
	}
	r.order = append(r.order, desc.Name)
	r.logger.Debug().Str("tool", desc.Name).Msg("Tool registered")
	return nil
}

// Has reports whether the name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetAll returns every schema in registration order
func (r *Registry) GetAll() []models.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].schema)
	}
	return out
}

// GetSchemas returns the schemas for the requested names, preserving request
// order and silently dropping unknown names. nil requests everything.
func (r *Registry) GetSchemas(names []string) []models.ToolSchema {
	if names == nil {
		return r.GetAll()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolSchema, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			out = append(out, tool.schema)
		}
	}
	return out
}

// Execute runs the named tool. Unknown names return ErrToolUnknown; executor
// failures are captured into a {success:false, error} envelope, never
// returned as errors, so the model can react to them.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolUnknown, name)
	}

	result, err := func() (result map[string]interface{}, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("tool panicked: %v", rec)
			}
		}()
		return tool.execute(ctx, args)
	}()
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", name).Msg("Tool execution failed")
		return map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}, nil
	}

	if result == nil {
		result = map[string]interface{}{}
	}
	if _, ok := result["success"]; !ok {
		result["success"] = true
	}
	return result, nil
}
