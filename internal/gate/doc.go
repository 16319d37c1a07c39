// Package gate screens writes to the authentication surface before they reach
// the auth handlers.
//
// Each POST is classified by route, attributed to a caller identity (session
// user, client address or a loopback fallback) and evaluated against one of
// three policy tiers. Denied requests get a localized JSON message; allowed
// requests continue with their original body.
package gate
