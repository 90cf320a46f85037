package events

import "sync"

// DefaultConfig configures the process-wide emitter.
type DefaultConfig struct {
	Path string
	Options
}

var (
	defaultMu      sync.Mutex
	defaultCfg     = DefaultConfig{Path: DefaultPath}
	defaultOnce    sync.Once
	defaultEmitter *Emitter
)

// ConfigureDefault sets the path and options used when Default first builds
// the process-wide emitter. Later calls after that first use have no effect
// and return false.
func ConfigureDefault(cfg DefaultConfig) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEmitter != nil {
		return false
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	defaultCfg = cfg
	return true
}

// Default returns the process-wide emitter, building it on first use. It
// lives until the process exits.
func Default() *Emitter {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		defaultEmitter = NewEmitter(NewFileSink(defaultCfg.Path), defaultCfg.Options)
	})
	return defaultEmitter
}
