package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Tool is a registrable tool implementation.
type Tool interface {
	Description() string
	Parameters() *Schema
	Execute(ctx context.Context, args map[string]any) Result
}

// Validator is implemented by argument types that check their own invariants.
type Validator interface {
	Validate() error
}

// Func adapts a typed handler to Tool. Arguments are decoded from the raw map
// and validated before Run is called.
type Func[A any] struct {
	name   Kind
	desc   string
	params *Schema
	run    func(ctx context.Context, args A) Result
}

// NewFunc creates a typed tool.
func NewFunc[A any](name Kind, desc string, params *Schema, run func(ctx context.Context, args A) Result) *Func[A] {
	if run == nil {
		panic("run is required")
	}
	if params == nil {
		params = Object(nil)
	}
	return &Func[A]{name: name, desc: desc, params: params, run: run}
}

func (f *Func[A]) Description() string { return f.desc }

func (f *Func[A]) Parameters() *Schema { return f.params }

// Execute decodes args into A, validates it and runs the handler.
func (f *Func[A]) Execute(ctx context.Context, args map[string]any) Result {
	var typed A
	if err := decodeArgs(args, &typed); err != nil {
		return Failuref("invalid arguments for %s: %v", f.name, err)
	}
	if v, ok := any(&typed).(Validator); ok {
		if err := v.Validate(); err != nil {
			return Failuref("invalid arguments for %s: %v", f.name, err)
		}
	}
	return f.run(ctx, typed)
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if args == nil {
		return nil
	}
	return dec.Decode(args)
}

// Registry maps tool kinds to implementations. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	tools  map[Kind]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[Kind]Tool),
		logger: logging.OrNop(logger),
	}
}

// Register binds a tool to its kind. Unknown kinds and duplicates are rejected.
func (r *Registry) Register(kind Kind, t Tool) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, kind)
	}
	if t == nil {
		return fmt.Errorf("%w: %s", ErrNilTool, kind)
	}
	if _, exists := r.tools[kind]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, kind)
	}
	r.tools[kind] = t
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[Kind(name)]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Call runs the named tool. It never panics and never returns a Go error:
// every failure is reported as a Result with OK false.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (res Result) {
	t, ok := r.tools[Kind(name)]
	if !ok {
		return Failuref("%v: %s", ErrUnknownTool, name)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", zap.String("tool", name), zap.Any("panic", p))
			res = Failuref("tool %s panicked: %v", name, p)
		}
	}()

	res = t.Execute(ctx, args)
	if !res.OK && res.Error == "" {
		res.Error = fmt.Sprintf("tool %s failed", name)
	}
	r.logger.Debug("tool call", zap.String("tool", name), zap.Bool("ok", res.OK))
	return res
}

// Catalog returns the declarations of all registered tools sorted by name.
func (r *Registry) Catalog() []Declaration {
	decls := make([]Declaration, 0, len(r.tools))
	for kind, t := range r.tools {
		decls = append(decls, Declaration{
			Name:        string(kind),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})
	return decls
}
