// Package xerrors provides centralized, categorized error handling for the
// transient-search pipeline, in the style of a centralized error package:
// errors are wrapped with a category and component, then surfaced through
// the rank-tagged diagnostic format the pipeline's operators expect.
package xerrors

import (
	"fmt"
	"os"
	"sync"
)

// Category groups errors by the kind of failure, mirroring the "Error kinds
// the core reports" enumerated for this pipeline: input availability,
// parameter validity, format errors, and numerical conditions.
type Category string

const (
	CategoryIO        Category = "input-availability"
	CategoryParameter Category = "parameter-validity"
	CategoryFormat    Category = "format-error"
	CategoryNumerical Category = "numerical"
	CategoryWorker    Category = "worker-pool"
)

// ComponentUnknown is used when no component was explicitly attached.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a category, a component name, and
// arbitrary context, so that a fatal condition can be reported with enough
// detail to diagnose without re-running the pipeline.
type EnhancedError struct {
	Err       error
	Category  Category
	Component string
	Context   map[string]any

	mu sync.RWMutex
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// WithContext returns a copy of the context map, safe for external use.
func (ee *EnhancedError) WithContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	out := make(map[string]any, len(ee.Context))
	for k, v := range ee.Context {
		out[k] = v
	}
	return out
}

// Builder provides a fluent interface for constructing an EnhancedError.
type Builder struct {
	err       error
	category  Category
	component string
	context   map[string]any
}

// New starts building an enhanced error from an existing error.
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf starts building an enhanced error from a formatted message.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

func (b *Builder) Category(c Category) *Builder {
	b.category = c
	return b
}

func (b *Builder) Component(component string) *Builder {
	b.component = component
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the EnhancedError.
func (b *Builder) Build() *EnhancedError {
	component := b.component
	if component == "" {
		component = ComponentUnknown
	}
	return &EnhancedError{
		Err:       b.err,
		Category:  b.category,
		Component: component,
		Context:   b.context,
	}
}

// Err is a shorthand for Build() returned as a plain error, for call sites
// that only need to satisfy the error interface.
func (b *Builder) Err() error {
	return b.Build()
}

// Fatal implements the pipeline-wide abort: emit the rank-tagged
// "From process {rank} (ERROR) => ..." diagnostic to stdout and terminate
// the process with exit code 1. There is only one OS process
// (internal/worker models ranks as goroutines within it), so a fatal error
// on any rank has already unwound every other rank's goroutine via
// errgroup's context cancellation before Fatal runs.
func Fatal(rank int, err error) {
	fmt.Fprintf(os.Stdout, "From process %d (ERROR) => %s\n", rank, err.Error())
	os.Exit(1)
}
