package space

/**
 * Expansion defaults
 *
 * These mirror documented CLI defaults. They are tuning knobs, not
 * algorithmic necessities, and may be overridden by embedders.
 */

// Automatic instance-count expansion range for brute search
var (
	DefaultMinInstances = 1
	DefaultMaxInstances = 5
)

// Automatic max-batch-size expansion range (powers of two) for brute search
var (
	DefaultMinBatchSize = 1
	DefaultMaxBatchSize = 128
)

// Automatic client-concurrency expansion range (powers of two)
var (
	DefaultMinConcurrency = 1
	DefaultMaxConcurrency = 1024
)

// Baseline configuration held when a dimension is not searched
var (
	DefaultInstanceCount    = 1
	DefaultModelBatchSize   = 8
	DefaultClientBatchSize  = 1
	DefaultConcurrency      = 1
	DefaultQueueDelayMicros = 100
)

// PowersOfTwo lists the powers of two within [min, max]
func PowersOfTwo(min, max int) []int {
	var values []int
	for v := 1; v <= max; v *= 2 {
		if v >= min {
			values = append(values, v)
		}
	}
	return values
}
