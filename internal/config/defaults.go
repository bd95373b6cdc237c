package config

import "time"

// Default configuration values.
const (
	DefaultDebounce  = 150 * time.Millisecond
	DefaultWorkers   = 2
	DefaultLogLevel  = "info"
	DefaultStorePath = ".queryplus/metadata.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=json
)

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"debounce":   DefaultDebounce.String(),
		"workers":    DefaultWorkers,
		"log_level":  DefaultLogLevel,
		"store_path": DefaultStorePath,
		"watch":      false,
		"output":     DefaultOutput,
	}
}
