package auth

import "context"

type principalContextKey struct{}
type claimsContextKey struct{}

// ContextWithCurrent attaches the authorized identity to the context.
func ContextWithCurrent(ctx context.Context, principal CurrentPrincipal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// CurrentFromContext extracts the authorized identity from the context.
func CurrentFromContext(ctx context.Context) (CurrentPrincipal, bool) {
	if ctx == nil {
		return CurrentPrincipal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*CurrentPrincipal)
	if !ok || v == nil {
		return CurrentPrincipal{}, false
	}
	return *v, true
}

// ContextWithClaims stores the full verified claims inside the context.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, &claims)
}

// ClaimsFromContext returns the verified claims if previously attached.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return Claims{}, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok || v == nil {
		return Claims{}, false
	}
	return *v, true
}
