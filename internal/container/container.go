// Package container assembles the container build plan: the parameters and the
// ordered compiler pass registrations of all resolved modules.
package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/bundlekit/passctl/pkg/builder"
)

var ErrDuplicatePass = errors.New("duplicate compiler pass")

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Registration is a compiler pass added to the container on behalf of a module.
type Registration struct {
	Module string                   `json:"module"`
	Pass   builder.CompilerPassSpec `json:"pass"`
}

// Plan is a snapshot of the container build sequence.
type Plan struct {
	Revision   string         `json:"revision,omitempty"`
	Parameters map[string]any `json:"parameters"`
	Passes     []Registration `json:"passes"`
}

// ContainerBuilder collects compiler pass registrations. It is safe for
// concurrent use.
type ContainerBuilder struct {
	mu         sync.Mutex
	parameters map[string]any
	passes     []Registration
	ids        map[string]string // pass id -> module
}

func New() *ContainerBuilder {
	return &ContainerBuilder{
		parameters: make(map[string]any),
		ids:        make(map[string]string),
	}
}

// Register appends the passes of a module. Either all passes are registered
// or, if any id is already taken, none is. The object manager parameter of the
// module is declared with the default manager (nil) unless already set.
func (c *ContainerBuilder) Register(module string, prefix string, specs []builder.CompilerPassSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if other, ok := c.ids[spec.ID]; ok {
			return fmt.Errorf("%w %q: module %q conflicts with module %q", ErrDuplicatePass, spec.ID, module, other)
		}
		if _, ok := seen[spec.ID]; ok {
			return fmt.Errorf("%w %q in module %q", ErrDuplicatePass, spec.ID, module)
		}
		seen[spec.ID] = struct{}{}
	}

	for _, spec := range specs {
		c.ids[spec.ID] = module
		c.passes = append(c.passes, Registration{Module: module, Pass: spec})
	}

	if len(specs) > 0 {
		param := builder.ObjectManagerParameter(prefix)
		if _, ok := c.parameters[param]; !ok {
			c.parameters[param] = nil
		}
	}

	return nil
}

// Plan returns a copy of the current build sequence.
func (c *ContainerBuilder) Plan() *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	passes := make([]Registration, len(c.passes))
	for i, r := range c.passes {
		r.Pass.Arguments = cloneArguments(r.Pass.Arguments)
		passes[i] = r
	}

	return &Plan{
		Parameters: maps.Clone(c.parameters),
		Passes:     passes,
	}
}

func cloneArguments(args []any) []any {
	if args == nil {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case map[string]string:
			out[i] = maps.Clone(v)
		case []string:
			out[i] = slices.Clone(v)
		case []any:
			out[i] = cloneArguments(v)
		default:
			out[i] = v
		}
	}
	return out
}

// Modules returns the names of the modules with registered passes, in
// registration order.
func (p *Plan) Modules() []string {
	var modules []string
	for _, r := range p.Passes {
		if !slices.Contains(modules, r.Module) {
			modules = append(modules, r.Module)
		}
	}
	return modules
}

// Input returns the plan as a generic document, suitable as policy input.
func (p *Plan) Input() (map[string]any, error) {
	bs, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	var input map[string]any
	if err := json.Unmarshal(bs, &input); err != nil {
		return nil, err
	}

	return input, nil
}

// Encode writes the plan in the given format.
func (p *Plan) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML, "":
		return yaml.NewEncoder(w).Encode(p)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	default:
		return fmt.Errorf("unsupported plan format %q", format)
	}
}
