package app

import "github.com/google/uuid"

// Actor is the authenticated staff member on whose behalf an action runs.
// Each surface (bot, HTTP API, scheduler) builds it explicitly per request.
type Actor struct {
	UserID uuid.UUID
	Name   string
}

func (a *Actor) valid() bool {
	return a != nil && a.UserID != uuid.Nil
}
