// Package config loads VM tuning knobs from a small JSON document, read with
// buger/jsonparser rather than encoding/json so a missing or malformed file
// costs nothing beyond the read itself -- no struct reflection, no
// intermediate map[string]interface{}.
package config

import (
	"os"

	"github.com/buger/jsonparser"
)

// Config controls the knobs spec.md leaves implementation-defined: how
// aggressively the heap grows between collections, how deep the call stack
// and frame stack may go, and how chatty the collector is about its own
// work.
type Config struct {
	// HeapGrowFactor multiplies bytesAllocated to get the next collection
	// threshold after a cycle completes.
	HeapGrowFactor int
	// StressGC forces a collection on every allocation, for exercising GC
	// bugs that a normal heap-growth cadence would rarely hit.
	StressGC bool
	// VerboseGC logs a line to stderr after every collection.
	VerboseGC bool
	// FrameMax bounds call-frame recursion depth.
	FrameMax int
	// StackMax sets the value stack's initial slot capacity. The stack is
	// not capped at this size: pushes past it grow the stack.
	StackMax int
}

// Defaults returns the Config used when no file is loaded.
func Defaults() *Config {
	return &Config{
		HeapGrowFactor: 2,
		StressGC:       false,
		VerboseGC:      false,
		FrameMax:       64,
		StackMax:       64 * 256,
	}
}

// Load reads Config fields present in the JSON document at path, leaving
// defaults in place for anything the document omits. A missing file is not
// an error: Load returns Defaults() unchanged.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if v, err := jsonparser.GetInt(data, "heapGrowFactor"); err == nil {
		cfg.HeapGrowFactor = int(v)
	}
	if v, err := jsonparser.GetBoolean(data, "stressGC"); err == nil {
		cfg.StressGC = v
	}
	if v, err := jsonparser.GetBoolean(data, "verboseGC"); err == nil {
		cfg.VerboseGC = v
	}
	if v, err := jsonparser.GetInt(data, "frameMax"); err == nil {
		cfg.FrameMax = int(v)
	}
	if v, err := jsonparser.GetInt(data, "stackMax"); err == nil {
		cfg.StackMax = int(v)
	}
	return cfg, nil
}

// FromEnv loads the config file named by $EMBER_CONFIG, if set.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("EMBER_CONFIG"))
}
