package sources

import (
	"fmt"
	"sync"
)

// Kind groups source adapters by family. Config files reference sources as
// kind plus name, e.g. type "cex" name "binance".
type Kind string

// KindCEX covers exchange-backed adapters (WebSocket streams and REST polls).
const KindCEX Kind = "cex"

type registryKey struct {
	kind Kind
	name string
}

var (
	registry = make(map[registryKey]SourceFactory)
	mu       sync.RWMutex
)

// Register adds a source factory for a kind and name
func Register(kind Kind, name string, factory SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[registryKey{kind: kind, name: name}] = factory
}

// Create creates a new source instance by kind and name
func Create(kind Kind, name string, config map[string]interface{}) (Source, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, ok := registry[registryKey{kind: kind, name: name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownSource, kind, name)
	}

	return factory(config)
}

// List returns all registered sources as "kind.name" strings
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for key := range registry {
		names = append(names, fmt.Sprintf("%s.%s", key.kind, key.name))
	}
	return names
}
