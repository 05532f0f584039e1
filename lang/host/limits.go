package host

import "time"

// Limits formalizes §5's resource-limit table as a type, constructed
// in-process by the embedder and passed to the VM via SetLimits — never
// read from a config file.
type Limits struct {
	MaxInstructions   uint64
	MaxStackDepth     int
	MaxCallDepth      int
	MaxExecutionTime  time.Duration
}

// DefaultLimits returns the defaults from §5's table.
func DefaultLimits() Limits {
	return Limits{
		MaxInstructions:  100_000_000,
		MaxStackDepth:    10_000,
		MaxCallDepth:     1_000,
		MaxExecutionTime: 60 * time.Second,
	}
}
