// Package config handles configuration loading for courier-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion (${VAR_NAME}) applied before parsing. Duration fields are
// written as strings in time.ParseDuration syntax and parsed after
// unmarshaling:
//
//	pairing:
//	  code_ttl: "5m"
//	  token_ttl: "2160h"
//
// # Validation
//
// Load() validates the result: server.http_addr, database.path and
// auth.jwt_secret are required; TTLs must be non-negative; pairing.code_ttl
// is capped at five minutes.
package config
