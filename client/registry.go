package client

import "fmt"

// Definition describes how to build one service at bootstrap.
type Definition struct {
	// New constructs the service, receiving the shared client context.
	New func(ctx *Context) (*Service, error)
}

// Registry indexes the bootstrapped services by their declared
// operation names.
type Registry map[string]*Service

// InitServices instantiates a set of services, injecting the shared
// client context, and indexes the result by each service's declared
// operation name (which may differ from its key in the definitions).
func InitServices(defs map[string]Definition, ctx *Context) (Registry, error) {
	reg := make(Registry, len(defs))
	for name, def := range defs {
		if def.New == nil {
			return nil, fmt.Errorf("service definition %q has no constructor", name)
		}
		svc, err := def.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("initializing service %q: %v", name, err)
		}
		reg[svc.Name()] = svc
	}
	return reg, nil
}
