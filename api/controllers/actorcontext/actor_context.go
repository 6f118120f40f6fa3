package actorcontext

import (
	"net/http"

	"github.com/threadline/threadline-backend/api/middleware"
	"github.com/threadline/threadline-backend/pkg/auth"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
)

// Resolve extracts the authenticated actor seeded by the auth middleware.
func Resolve(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context required")
	}
	if err := actor.Validate(); err != nil {
		return auth.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor")
	}
	return actor, nil
}
