package rest

/**
 * Environment variables
 */

// REST server env names
const RestHostEnvName = "EXPLORER_HOST"
const RestPortEnvName = "EXPLORER_PORT"

// defaults when env vars are unset
const DefaultHost = "localhost"
const DefaultPort = "8080"
