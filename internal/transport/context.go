package transport

import "context"

type preAuthKey struct{}

type bearerKey struct{}

// WithPreAuth marks requests made with ctx as establishing a session. They
// never carry the stored credential, and a 401 on them means the submitted
// credentials were wrong rather than that the session expired.
func WithPreAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, preAuthKey{}, true)
}

// IsPreAuth reports whether ctx was marked by WithPreAuth.
func IsPreAuth(ctx context.Context) bool {
	v, _ := ctx.Value(preAuthKey{}).(bool)
	return v
}

// WithBearer overrides the bearer token for requests made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerOverride(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}
