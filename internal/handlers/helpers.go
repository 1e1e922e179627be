package handlers

import (
	"net/http"

	"servus-backend/internal/apperr"
	"servus-backend/internal/middleware"
	"servus-backend/internal/models"
)

// actorOf returns the authenticated caller. Public routes get the zero identity.
func actorOf(r *http.Request) models.ActorIdentity {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

func validationField(field, msg string) error {
	return apperr.ValidationFields("validation failed", map[string]string{field: msg})
}
