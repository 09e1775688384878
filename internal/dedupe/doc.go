// Package dedupe provides message deduplication using a time-based cache
// to prevent processing redelivered messages within a configurable window.
package dedupe
