// Package server provides HTTP routing, middleware, and the OAuth callback flow for the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), hands the authorization
// code to the service for the token exchange, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs an auth command, a temporary HTTP server starts on the
// configured host and port, handles the redirect from the provider, and shuts
// down after receiving the result. Both Spotify and Tidal flows go through the
// same handler; the PKCE details live behind the service's ExchangeCode.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
