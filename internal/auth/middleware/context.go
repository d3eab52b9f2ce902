package auth

import "context"

// subjectKey carries the token subject; unexported so only this package sets it.
type subjectKey struct{}

// WithSubject records the authenticated user id on ctx.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the user id the bearer token was issued to, or
// "" for unauthenticated requests.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
