// Package normalize converts raw platform payloads into canonical messages.
//
// # Normalizers
//
// One normalizer per platform (app, whatsapp, telegram, mail, terminal)
// maps the platform's native envelope onto message.IncomingMessage.
// Malformed payloads degrade to an empty-text message with the original
// payload preserved in Metadata.Raw rather than failing the pipeline.
//
// # Detection
//
// Detect classifies an untagged payload by shape. Predicates run in a fixed
// order, each with a confidence level:
//
//  1. Explicit platform field (1.0)
//  2. WhatsApp envelope: key.remoteJid + message (0.9)
//  3. Telegram Bot API: update_id or message.chat (0.9)
//  4. Mail: from + subject or headers (0.8)
//  5. Terminal: bare command string (0.8)
//  6. App-native fallback (0.5)
//
// The order is part of the contract: an explicit tag always wins, and the
// tie-break between overlapping shapes is covered by tests.
package normalize
