package config

import (
	"os"
	"strings"
)

// Resolver looks up settings in the environment first and in process
// properties second. Empty values count as absent.
type Resolver struct {
	props   map[string]string
	environ func() []string
	getenv  func(string) string
}

// NewResolver creates a resolver over the process environment and the given
// properties.
func NewResolver(props map[string]string) *Resolver {
	return &Resolver{
		props:   props,
		environ: os.Environ,
		getenv:  os.Getenv,
	}
}

// NewResolverWithEnv creates a resolver over an explicit environment given
// as "KEY=value" entries. Used by tests and by callers that sandbox env.
func NewResolverWithEnv(env []string, props map[string]string) *Resolver {
	lookup := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			lookup[k] = v
		}
	}
	return &Resolver{
		props:   props,
		environ: func() []string { return env },
		getenv:  func(k string) string { return lookup[k] },
	}
}

// Env returns an environment variable, matching the name exactly first and
// case-insensitively second (Windows and some CI runners differ in case).
func (r *Resolver) Env(name string) string {
	if v := r.getenv(name); v != "" {
		return v
	}
	for _, kv := range r.environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && v != "" && strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Property returns a process property or "".
func (r *Resolver) Property(name string) string {
	if r.props == nil {
		return ""
	}
	return r.props[name]
}

// Lookup resolves envName from the environment, falling back to the
// propName property.
func (r *Resolver) Lookup(envName, propName string) string {
	if v := r.Env(envName); v != "" {
		return v
	}
	return r.Property(propName)
}
