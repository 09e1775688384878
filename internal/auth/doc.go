// Package auth provides token signing and session authentication for
// courier-gateway.
//
// # Token Kinds
//
// Two token kinds are signed with HS256 using the configured jwt_secret,
// distinguished by a "use" claim:
//
//   - Device tokens: long-lived credentials bound to (user, device,
//     platform). Minted by pairing, verified in two phases: signature and
//     expiry here, live device status in the pairing service.
//
//   - Session tokens: short-lived interactive credentials carrying only the
//     user ID. Issued by the login handler, checked by SessionMiddleware.
//
// Expired and invalid tokens return distinct errors so a client can decide
// whether to refresh or to re-pair.
//
// # HTTP
//
// SessionMiddleware validates a bearer session token and places the user ID
// in the request context; LoginHandler exchanges a name + bcrypt-checked
// secret for a session token.
package auth
