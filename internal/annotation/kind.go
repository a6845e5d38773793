package annotation

import (
	"fmt"
	"strings"
	"sync"
)

// Kind tags what a span represents. The predefined kinds cover the types the
// post-processing annotators work with; further kinds are minted by a
// Registry.
type Kind int

const (
	KindUnknown Kind = iota
	KindToken
	KindSentence
	KindEntity
	KindAbbreviation
	KindChunk
	KindReference

	firstDynamicKind
)

var builtinKinds = []string{
	KindUnknown:      "unknown",
	KindToken:        "token",
	KindSentence:     "sentence",
	KindEntity:       "entity",
	KindAbbreviation: "abbreviation",
	KindChunk:        "chunk",
	KindReference:    "reference",
}

// Registry interns annotation type names into kinds. One registry is owned
// by each processing configuration and handed to the components that need
// to agree on kinds.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Kind
	names  []string
}

// NewRegistry returns a registry that already knows the builtin kinds.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Kind, len(builtinKinds)),
		names:  make([]string, len(builtinKinds)),
	}
	copy(r.names, builtinKinds)
	for k, name := range builtinKinds {
		r.byName[name] = Kind(k)
	}
	return r
}

// Intern returns the kind registered for name, registering it on first use.
// Names are case-insensitive and surrounding whitespace is ignored.
func (r *Registry) Intern(name string) Kind {
	key := normalizeKindName(name)
	if key == "" {
		return KindUnknown
	}
	r.mu.RLock()
	k, ok := r.byName[key]
	r.mu.RUnlock()
	if ok {
		return k
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.byName[key]; ok {
		return k
	}
	k = Kind(len(r.names))
	r.byName[key] = k
	r.names = append(r.names, key)
	return k
}

// Lookup returns the kind for name without registering it.
func (r *Registry) Lookup(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[normalizeKindName(name)]
	return k, ok
}

// Name returns the registered name of k.
func (r *Registry) Name(k Kind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k < 0 || int(k) >= len(r.names) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return r.names[k]
}

// Len returns the number of registered kinds, builtins included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(builtinKinds) {
		return builtinKinds[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Dynamic reports whether k was minted by a Registry rather than predefined.
func (k Kind) Dynamic() bool {
	return k >= firstDynamicKind
}

func normalizeKindName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
