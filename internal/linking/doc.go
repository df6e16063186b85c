// Package linking implements the external creator account linking flow.
//
// The outbound leg (AuthorizationRequestBuilder) mints a one-time CSRF token
// and records which user started the attempt before the browser leaves for
// the provider. The return leg (CallbackProcessor) verifies the token,
// works out who the attempt belongs to, exchanges the authorization code and
// persists the resulting LinkedAccount. StatusService renders the current
// connection state and reconciles its cache whenever a callback completes.
//
// Browser-side state lives behind the Store capability so the flow can be
// driven by cookies in production and by MemoryStore in tests.
package linking
