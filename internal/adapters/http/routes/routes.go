// Package routes builds the API sub-routers mounted below /api.
//
// Business routes of each group are owned by their own modules; every group
// carries a status route so dispatch can be checked end to end.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klhresolve/backend/internal/adapters/database"
	"github.com/klhresolve/backend/internal/adapters/http/api"
)

// Group names, also their path segment below /api.
const (
	GroupAuth       = "auth"
	GroupComplaints = "complaints"
	GroupUsers      = "users"
)

// StatusSource reports the database connector state.
type StatusSource interface {
	Status() database.Status
}

// Auth returns the authentication sub-router.
func Auth(db StatusSource) chi.Router { return newGroup(GroupAuth, db) }

// Complaints returns the complaints sub-router.
func Complaints(db StatusSource) chi.Router { return newGroup(GroupComplaints, db) }

// Users returns the users sub-router.
func Users(db StatusSource) chi.Router { return newGroup(GroupUsers, db) }

// Groups returns all sub-routers with their mount prefixes.
func Groups(db StatusSource) []api.Group {
	return []api.Group{
		{Prefix: api.PrefixAPI + "/" + GroupAuth, Router: Auth(db)},
		{Prefix: api.PrefixAPI + "/" + GroupComplaints, Router: Complaints(db)},
		{Prefix: api.PrefixAPI + "/" + GroupUsers, Router: Users(db)},
	}
}

func newGroup(name string, db StatusSource) chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/status", api.Handle(statusHandler(name, db)))
	return r
}

type statusResponse struct {
	Success  bool   `json:"success"`
	Group    string `json:"group"`
	Database string `json:"database"`
}

func statusHandler(name string, db StatusSource) api.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		state := database.StatusDisabled
		if db != nil {
			state = db.Status()
		}
		return api.WriteJSON(w, http.StatusOK, statusResponse{
			Success:  true,
			Group:    name,
			Database: string(state),
		})
	}
}
