// Package config loads the twofa server settings from the environment.
//
// Structs carry cleanenv tags, so
//
//	cfg, err := config.Load(".env")
//
// reads an optional dotenv file, fills every section and validates the
// combination (a redis send limiter needs TWOFA_REDIS_URL, an SMS gateway
// needs a URL, and so on). Validation failures are returned together as
// ValidationErrors.
package config
