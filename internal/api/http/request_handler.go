package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/service"
	"event-request-backend/internal/workflow"
)

// RequestHandler exposes the event request engine over HTTP
type RequestHandler struct {
	engine service.Engine
}

func NewRequestHandler(engine service.Engine) *RequestHandler {
	return &RequestHandler{engine: engine}
}

type createRequestBody struct {
	Event    domain.EventDraft   `json:"event"`
	Location domain.LocationRefs `json:"location"`
	Notes    string              `json:"notes"`
}

type overrideBody struct {
	CoordinatorID string `json:"coordinator_id"`
}

type requestView struct {
	Request          *domain.EventRequest `json:"request"`
	AvailableActions []workflow.Action    `json:"available_actions"`
}

type conflictView struct {
	Conflict *domain.ClaimConflict `json:"conflict"`
	Message  string                `json:"message"`
}

func (h *RequestHandler) view(r *http.Request, userID string, req *domain.EventRequest) requestView {
	return requestView{
		Request:          req,
		AvailableActions: h.engine.GetAvailableActions(r.Context(), userID, req.ID),
	}
}

// CreateRequest handles POST /api/v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		return
	}
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := h.engine.CreateRequest(r.Context(), userID, body.Event, body.Location, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(r, userID, req))
}

// ListRequests handles GET /api/v1/requests?status=
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.RequestStatusPendingReview
	}
	reqs, err := h.engine.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

// GetRequest handles GET /api/v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	req, err := h.engine.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, req))
}

// UpdateLocation handles PUT /api/v1/requests/{id}/location
func (h *RequestHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	var loc domain.LocationRefs
	if err := decodeJSON(r, &loc); err != nil {
		writeError(w, err)
		return
	}
	req, err := h.engine.UpdateLocation(r.Context(), mux.Vars(r)["id"], userID, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, req))
}

// Claim handles POST /api/v1/requests/{id}/claim. A lost race answers 409
// with the conflict so the client can refresh its pool.
func (h *RequestHandler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	res, err := h.engine.Claim(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Claimed() {
		writeJSON(w, http.StatusConflict, conflictView{Conflict: res.Conflict, Message: res.Conflict.Message()})
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, res.Request))
}

// Release handles POST /api/v1/requests/{id}/release
func (h *RequestHandler) Release(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	req, err := h.engine.Release(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, req))
}

// Override handles POST /api/v1/requests/{id}/override
func (h *RequestHandler) Override(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	var body overrideBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := h.engine.OverrideCoordinator(r.Context(), mux.Vars(r)["id"], userID, body.CoordinatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, req))
}

// ExecuteAction handles POST /api/v1/requests/{id}/actions/{action}
func (h *RequestHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	switch workflow.Action(vars["action"]) {
	case workflow.ActionClaim:
		h.Claim(w, r)
		return
	case workflow.ActionRelease:
		h.Release(w, r)
		return
	case workflow.ActionOverrideCoordinator:
		h.Override(w, r)
		return
	}

	var payload workflow.Payload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	h.execute(w, r, workflow.Action(vars["action"]), payload)
}

// DeleteRequest handles DELETE /api/v1/requests/{id}
func (h *RequestHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, workflow.ActionDelete, workflow.Payload{})
}

func (h *RequestHandler) execute(w http.ResponseWriter, r *http.Request, action workflow.Action, payload workflow.Payload) {
	userID, _ := GetUserIDFromContext(r.Context())
	req, err := h.engine.ExecuteAction(r.Context(), mux.Vars(r)["id"], userID, action, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	if req == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, userID, req))
}

// AvailableActions handles GET /api/v1/requests/{id}/actions
func (h *RequestHandler) AvailableActions(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	actions := h.engine.GetAvailableActions(r.Context(), userID, mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// ValidCoordinators handles GET /api/v1/requests/{id}/coordinators
func (h *RequestHandler) ValidCoordinators(w http.ResponseWriter, r *http.Request) {
	coordinators, err := h.engine.ListValidCoordinators(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coordinators": coordinators})
}

// Claimable handles GET /api/v1/claimable
func (h *RequestHandler) Claimable(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	reqs, err := h.engine.ListClaimable(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}
