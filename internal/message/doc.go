// Package message defines the canonical message types shared by every
// gateway component: Platform, Attachment and IncomingMessage.
package message
