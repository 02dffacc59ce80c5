// Package envconfig reads convgrad settings from the process environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/born-ml/convgrad/internal/logutil"
)

// Var returns an environment variable stripped of leading and trailing quotes or spaces
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the log level for the application.
// Values are 0 or false INFO (Default), 1 or true DEBUG, 2 TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("CONVGRAD_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Uint returns a function that reads key as an unsigned integer, falling back
// to defaultValue when unset or unparsable.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}

		return defaultValue
	}
}

var (
	// NumThreads sets the number of workers used by engine kernels. Zero means one per CPU.
	NumThreads = Uint("CONVGRAD_NUM_THREADS", 0)
	// BlockSize sets the channel blocking factor for engine-native layouts. Zero or one disables blocked layouts.
	BlockSize = Uint("CONVGRAD_BLOCK_SIZE", 8)
	// ScratchPool sets how many reorder scratch buffers are retained per size class.
	ScratchPool = Uint("CONVGRAD_SCRATCH_POOL", 16)
)

// Workers resolves NumThreads to a positive worker count.
func Workers() int {
	if n := NumThreads(); n > 0 {
		return int(n)
	}
	return runtime.NumCPU()
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CONVGRAD_DEBUG":        {"CONVGRAD_DEBUG", LogLevel(), "Show additional debug information (e.g. CONVGRAD_DEBUG=1, CONVGRAD_DEBUG=2 for trace)"},
		"CONVGRAD_NUM_THREADS":  {"CONVGRAD_NUM_THREADS", NumThreads(), "Number of kernel worker goroutines (default: one per CPU)"},
		"CONVGRAD_BLOCK_SIZE":   {"CONVGRAD_BLOCK_SIZE", BlockSize(), "Channel blocking factor for native layouts (default 8)"},
		"CONVGRAD_SCRATCH_POOL": {"CONVGRAD_SCRATCH_POOL", ScratchPool(), "Reorder scratch buffers retained per size class (default 16)"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		if level, ok := v.Value.(slog.Level); ok {
			vals[k] = logutil.LevelName(level)
			continue
		}
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
