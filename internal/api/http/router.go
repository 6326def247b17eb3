package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"event-request-backend/internal/security"
	"event-request-backend/internal/service"
)

// RouterDeps are the handlers' collaborators. Metrics is served on /metrics
// when set.
type RouterDeps struct {
	Engine        service.Engine
	Notifications service.NotificationService
	Tokens        security.TokenManager
	Metrics       http.Handler
}

// NewRouter registers every route behind logging and auth middleware.
func NewRouter(d RouterDeps) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	router.Use(NewAuthMiddleware(d.Tokens).Handler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics).Methods("GET")
	}

	RegisterRequestRoutes(router, NewRequestHandler(d.Engine))
	if d.Notifications != nil {
		RegisterNotificationRoutes(router, NewNotificationHandler(d.Notifications))
	}
	return router
}

// RegisterRequestRoutes registers the event request endpoints
func RegisterRequestRoutes(router *mux.Router, h *RequestHandler) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/requests", h.CreateRequest).Methods("POST")
	api.HandleFunc("/requests", h.ListRequests).Methods("GET")
	api.HandleFunc("/requests/{id}", h.GetRequest).Methods("GET")
	api.HandleFunc("/requests/{id}", h.DeleteRequest).Methods("DELETE")
	api.HandleFunc("/requests/{id}/location", h.UpdateLocation).Methods("PUT")
	api.HandleFunc("/requests/{id}/claim", h.Claim).Methods("POST")
	api.HandleFunc("/requests/{id}/release", h.Release).Methods("POST")
	api.HandleFunc("/requests/{id}/override", h.Override).Methods("POST")
	api.HandleFunc("/requests/{id}/actions/{action}", h.ExecuteAction).Methods("POST")
	api.HandleFunc("/requests/{id}/actions", h.AvailableActions).Methods("GET")
	api.HandleFunc("/requests/{id}/coordinators", h.ValidCoordinators).Methods("GET")
	api.HandleFunc("/claimable", h.Claimable).Methods("GET")
}

// RegisterNotificationRoutes registers the in-app notification endpoints
func RegisterNotificationRoutes(router *mux.Router, h *NotificationHandler) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
}
