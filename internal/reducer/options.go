package reducer

import (
	"log"

	"sentra/internal/embed"
)

// Options configures one Reduce/ReduceProgram run.
type Options struct {
	// MaxIterations bounds the outer fixed-point loop. Zero selects the
	// default.
	MaxIterations int
	// Verbose logs one line per pass (statement count, completeness) plus
	// the run's start, end and rejection lines. PushCallLog/PopCallLog
	// brackets are not logged; Watch is what receives them.
	Verbose bool
	// FieldModulusBits is the field's bit width, used to size the Unpack
	// embed's output. Zero selects BN254's width.
	FieldModulusBits int
	// Watch, if set, receives every PushCallLog/PopCallLog bracket emitted
	// during the run for a live trace viewer (see watchserver.go).
	Watch *TraceServer
	// Cache, if set, seeds the inliner's call cache from a prior run's
	// persisted entries before reducing, and is written back with every
	// entry resolved this run once reduction succeeds.
	Cache *CacheStore
}

const defaultMaxIterations = 10000

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.FieldModulusBits <= 0 {
		o.FieldModulusBits = embed.BN254FieldModulusBits
	}
	return o
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Verbose {
		log.Printf("reducer: "+format, args...)
	}
}
