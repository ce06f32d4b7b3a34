// Package middleware adapts a warden engine to net/http.
//
// [Authenticate] reads a bearer token from the Authorization header, calls
// Engine.Authenticate and stores the resulting Identity in the request
// context. [RequireAction] then checks that identity against the role
// matrix. [ClientIP] records the peer address for throttling and audit.
//
// # What this package must NOT do
//
//   - Parse or sign tokens. Every decision is delegated to the engine.
//   - Touch a store or registry directly.
package middleware
