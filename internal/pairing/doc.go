// Package pairing links terminal devices to users and manages the device
// token lifecycle.
//
// # Flow
//
// A logged-in user generates a short-lived single-use code (CR-XXXX-XXXX,
// five minutes). The device redeems it with Link: consumption is atomic, so
// of two concurrent attempts exactly one wins, and the winner receives a
// long-lived device token. Validate checks the token in two phases
// (signature and expiry, then live device status) with a distinct error per
// failure cause. Refresh exchanges a signature-valid token for a fresh one
// without revoking the old. Unlink removes the device record, which kills
// every outstanding token for it.
//
// Link, Refresh and Unlink for one device serialize on a per-device keyed
// mutex.
//
// # HTTP
//
// API serves the /terminal/* endpoints; generate-token, unlink and devices
// require a user session, while link, validate and refresh authenticate
// with the pairing code or device token in the request body.
package pairing
