package secret

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment prefix the resolver snapshots at
// startup: CONVEYOR_SECRET_REGISTRY_PASS becomes credential "REGISTRY_PASS".
const DefaultEnvPrefix = "CONVEYOR_SECRET_"

// Resolver is the process-wide credential store, populated once at
// startup. Reads are serialized internally so concurrent stages may
// share one resolver.
type Resolver struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewResolver creates a resolver over a fixed value map.
func NewResolver(values map[string]string) *Resolver {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Resolver{values: copied}
}

// NewResolverFromEnv snapshots prefixed environment variables into a
// resolver. An optional dotenv file is folded into the environment
// first, so local runs can keep credentials out of shell history.
func NewResolverFromEnv(prefix, dotenvPath string) (*Resolver, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	if dotenvPath != "" {
		// Overload is not used: real environment wins over the file.
		if err := godotenv.Load(dotenvPath); err != nil {
			return nil, fmt.Errorf("secret: loading dotenv %s: %w", dotenvPath, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.TrimPrefix(s, prefix)
	}), nil); err != nil {
		return nil, fmt.Errorf("secret: reading environment: %w", err)
	}

	values := make(map[string]string)
	for name := range k.All() {
		values[name] = k.String(name)
	}
	return &Resolver{values: values}, nil
}

// Resolve looks up a named credential. The returned Secret is valid for
// one stage invocation; callers discard it when the invocation ends.
func (r *Resolver) Resolve(name string) (Secret, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[name]
	if !ok {
		return Secret{}, &UnknownSecretError{Name: name}
	}
	return Secret{name: name, value: v}, nil
}

// Has reports whether a credential name is configured, without
// materializing its value. Used for pre-execution validation.
func (r *Resolver) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.values[name]
	return ok
}

// Names returns configured credential names in lexical order. Values
// are never included.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.values))
	for n := range r.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Redactor returns a redactor covering every configured value, for
// scrubbing captured stage output.
func (r *Resolver) Redactor() *Redactor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vals := make([]string, 0, len(r.values))
	for _, v := range r.values {
		if v != "" {
			vals = append(vals, v)
		}
	}
	return NewRedactor(vals)
}
