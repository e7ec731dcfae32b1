package http

import (
	"context"

	"github.com/go-api-auth/internal/application/identity"
	"github.com/go-api-auth/internal/application/session"
	"github.com/go-api-auth/internal/application/user"
	"github.com/go-api-auth/internal/application/verification"
)

// Deps holds the services and stores the router wires into handlers.
type Deps struct {
	Sessions     session.Service
	Verification verification.Service
	Identity     identity.Service
	Users        user.Service
	// Healthcheck pings the backing stores; nil reports healthy.
	Healthcheck func(context.Context) error
}
