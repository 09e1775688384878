// Package credfile persists the terminal client's device credentials on
// disk. Files are written 0600 via a temp-file rename so a crash never
// leaves a truncated credential file.
package credfile
