// Package gateway implements the message ingest pipeline and the HTTP
// server that fronts it.
//
// # Pipeline
//
// Ingest runs each raw payload through a fixed sequence:
//
//	detect (if untagged) → normalize → dedupe → resolve → audit → route
//
// Messages from senders with no linked account are rejected before routing
// and the rejection is audited. Redeliveries within the dedupe window are
// dropped without a second audit entry. Transient store failures release
// the dedupe mark so the caller can retry the identical payload.
//
// # Router
//
// Handlers register per platform or under the wildcard and run in
// registration order. A handler error or panic is logged and isolated;
// sibling handlers still run.
//
// # HTTP
//
// API serves POST /api/messages (device token or session) and
// GET /api/history (session). Server assembles the store, signer, pairing
// service and mux, and runs background maintenance: expired pairing-code
// sweeps and message-log retention purges.
package gateway
