// Package transport builds preconfigured HTTP clients for backend targets.
//
// Every client runs the same interceptor chain: a request ID, a trace span,
// the authorization-failure hook that clears the session store on a 401, the
// credential hook that attaches the stored bearer token, and request metrics.
// How a target authenticates is fixed at construction by its CredentialPolicy.
package transport
