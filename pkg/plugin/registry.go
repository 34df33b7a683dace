package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/smbtrace/internal/core"
)

// ParserFactory creates a fresh parser instance.
type ParserFactory func() Parser

// ReporterFactory creates a fresh reporter instance.
type ReporterFactory func() Reporter

type registry[F any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]F
}

func newRegistry[F any](kind string) *registry[F] {
	return &registry[F]{kind: kind, factories: make(map[string]F)}
}

func (r *registry[F]) register(name string, f F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("plugin: %s %q already registered", r.kind, name))
	}
	r.factories[name] = f
}

func (r *registry[F]) get(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %q", core.ErrPluginNotFound, r.kind, name)
	}
	return f, nil
}

func (r *registry[F]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset drops every registration. Used by tests.
func (r *registry[F]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]F)
}

var (
	parserReg   = newRegistry[ParserFactory]("parser")
	reporterReg = newRegistry[ReporterFactory]("reporter")
)

// RegisterParser makes a parser available by name. It panics on duplicates,
// registrations happen from init functions.
func RegisterParser(name string, f ParserFactory) { parserReg.register(name, f) }

// GetParserFactory looks up a registered parser.
func GetParserFactory(name string) (ParserFactory, error) { return parserReg.get(name) }

// ParserNames lists registered parsers in sorted order.
func ParserNames() []string { return parserReg.names() }

// RegisterReporter makes a reporter available by name.
func RegisterReporter(name string, f ReporterFactory) { reporterReg.register(name, f) }

// GetReporterFactory looks up a registered reporter.
func GetReporterFactory(name string) (ReporterFactory, error) { return reporterReg.get(name) }

// ReporterNames lists registered reporters in sorted order.
func ReporterNames() []string { return reporterReg.names() }
