// Package auth implements the OAuth2 token lifecycle for streaming service accounts.
//
// Each service is described by a [Config] capability table (authorization and
// token endpoints, whether PKCE is required, whether the client secret is sent
// on exchange and on refresh). The [Authenticator] drives the flow:
//
//	Unauthenticated -> GenerateAuthURL -> AwaitingCode -> ExchangeCode -> Authenticated
//	Authenticated -> (token nears expiry) -> refresh -> Authenticated
//
// Tokens are cached through a [Store] (one JSON file per service account) with
// absolute expiry timestamps, so cached records stay valid across restarts.
// A 60 second safety margin treats tokens as expired slightly early, absorbing
// clock skew and request latency.
//
// Token exchange and refresh are delegated to [golang.org/x/oauth2]; the
// capability flags select whether the client secret is attached by swapping
// the secret in and out of the [oauth2.Config] per operation.
package auth
