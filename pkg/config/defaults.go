package config

/**
 * Profile defaults
 */

// Number of finalist configurations reported per model
const DefaultNumConfigsPerModel = 3

// Consecutive non-improving hill-climbing steps tolerated before exit
const DefaultEarlyExitThreshold = 5

// Per-measurement oracle timeout in seconds
const DefaultOracleTimeoutSec = 600

// Maximum number of composing models of an ensemble or BLS model
const MaxComposingModels = 4
