package shared

import (
	"context"
	"errors"
)

// Scope pins every engine call to one company/branch pair. It is passed
// explicitly; there is no ambient "current company" state anywhere.
type Scope struct {
	CompanyID int64
	BranchID  int64
}

// Validate ensures the scope is fully specified.
func (s Scope) Validate() error {
	if s.CompanyID <= 0 || s.BranchID <= 0 {
		return errors.New("shared: scope requires company and branch")
	}
	return nil
}

type actorContextKey struct{}

// ErrNoActor indicates the request carried no actor identity.
var ErrNoActor = errors.New("shared: actor not present in context")

// ContextWithActor stores the acting user id in context. Identity itself is
// established by an external provider; the engine only consumes the id.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id from context.
func ActorFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	if !ok || id == 0 {
		return 0, ErrNoActor
	}
	return id, nil
}
