// Package action provides the built-in stage actions and the registry
// that maps config action kinds to constructors. Actions are the
// orchestrator's only contact with external collaborators: build
// runners, the container daemon, registries, and scanners.
package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sofmeright/conveyor/src/pipeline"
)

// Configurable is implemented by actions that take options from the
// stage's `with:` block.
type Configurable interface {
	Configure(options map[string]any) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() pipeline.Action{}
)

// Register adds an action constructor to the global registry.
// Called from init() in each action file.
func Register(kind string, constructor func() pipeline.Action) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("action: duplicate registration: %s", kind))
	}
	registry[kind] = constructor
}

// New returns a configured instance of the named action kind.
func New(kind string, options map[string]any) (pipeline.Action, error) {
	registryMu.RLock()
	ctor, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("action: unknown kind %q (valid: %v)", kind, Kinds())
	}

	a := ctor()
	if c, ok := a.(Configurable); ok {
		if err := c.Configure(options); err != nil {
			return nil, fmt.Errorf("action %s: %w", kind, err)
		}
	}
	return a, nil
}

// Kinds returns sorted names of all registered action kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// stringOption reads a string from an options map.
func stringOption(options map[string]any, key string) (string, bool) {
	v, ok := options[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// stringMapOption reads a map[string]string from an options map,
// accepting the map[string]any shape YAML produces.
func stringMapOption(options map[string]any, key string) (map[string]string, error) {
	v, ok := options[key]
	if !ok {
		return nil, nil
	}
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, s := range m {
			out[k] = s
		}
	case map[string]any:
		for k, raw := range m {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("option %s.%s: want string, got %T", key, k, raw)
			}
			out[k] = s
		}
	default:
		return nil, fmt.Errorf("option %s: want map, got %T", key, v)
	}
	return out, nil
}

// boolOption reads a bool from an options map, defaulting when absent.
func boolOption(options map[string]any, key string, def bool) bool {
	if v, ok := options[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
