package auth

import "context"

// identity is the authenticated user and the session that proved it; the
// middlewares always attach the two together.
type identity struct {
	user    User
	session Session
}

type identityKey struct{}

func withIdentity(ctx context.Context, u User, s Session) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{user: u, session: s})
}

func UserFromContext(ctx context.Context) (User, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id.user, ok
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id.session, ok
}
