package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hostbridge/hostbridge/internal/http/middleware"
	"github.com/hostbridge/hostbridge/internal/http/response"
	"github.com/hostbridge/hostbridge/internal/observability"
	"github.com/hostbridge/hostbridge/internal/service"
)

type RelationshipHandler struct {
	rels service.RelationshipServiceInterface
}

func NewRelationshipHandler(rels service.RelationshipServiceInterface) *RelationshipHandler {
	return &RelationshipHandler{rels: rels}
}

type requestAccessBody struct {
	HostEmail string `json:"host_email"`
	Message   string `json:"message"`
}

// ListHosts is the controller dashboard's main read.
func (h *RelationshipHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	hosts, err := h.rels.ListHostsFor(r.Context(), user.ID)
	if err != nil {
		slog.Error("list hosts", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to load hosts")
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"hosts": hosts})
}

func (h *RelationshipHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body requestAccessBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.APIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.rels.RequestAccess(user.ID, body.HostEmail, body.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired):
			response.APIError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrHostNotFound):
			response.APIError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrDuplicateRelationship):
			response.APIError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("request access", "error", err, "user_id", user.ID)
			response.APIError(w, http.StatusInternalServerError, "failed to create request")
		}
		return
	}
	observability.Audit(r, "relationship.requested", slog.Uint64("relationship_id", uint64(id)))
	response.Success(w, http.StatusOK, map[string]any{"relationship_id": id})
}

// RemoveHost revokes an active grant from the controller side.
func (h *RelationshipHandler) RemoveHost(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := relationshipID(r)
	if !ok {
		response.APIError(w, http.StatusNotFound, service.ErrRelationshipNotFound.Error())
		return
	}
	if err := h.rels.RevokeAsController(id, user.ID); err != nil {
		if errors.Is(err, service.ErrRelationshipNotFound) {
			response.APIError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("remove host", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to remove host")
		return
	}
	observability.Audit(r, "relationship.revoked_by_controller", slog.Uint64("relationship_id", uint64(id)))
	response.Success(w, http.StatusOK, nil)
}

func (h *RelationshipHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	requests, err := h.rels.ListPendingRequestsFor(user.ID)
	if err != nil {
		slog.Error("list requests", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to load requests")
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *RelationshipHandler) ListControllers(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	controllers, err := h.rels.ListControllersFor(user.ID)
	if err != nil {
		slog.Error("list controllers", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to load controllers")
		return
	}
	response.Success(w, http.StatusOK, map[string]any{"controllers": controllers})
}

func (h *RelationshipHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "relationship.accepted", h.rels.Accept)
}

func (h *RelationshipHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "relationship.rejected", h.rels.Reject)
}

func (h *RelationshipHandler) transition(w http.ResponseWriter, r *http.Request, event string, op func(relationshipID, hostID uint) error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := relationshipID(r)
	if !ok {
		response.APIError(w, http.StatusNotFound, service.ErrNotFoundOrAlreadyProcessed.Error())
		return
	}
	if err := op(id, user.ID); err != nil {
		if errors.Is(err, service.ErrNotFoundOrAlreadyProcessed) {
			response.APIError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("transition request", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to update request")
		return
	}
	observability.Audit(r, event, slog.Uint64("relationship_id", uint64(id)))
	response.Success(w, http.StatusOK, nil)
}

// RemoveController revokes an active grant from the host side.
func (h *RelationshipHandler) RemoveController(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.APIError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := relationshipID(r)
	if !ok {
		response.APIError(w, http.StatusNotFound, service.ErrRelationshipNotFound.Error())
		return
	}
	if err := h.rels.RevokeAsHost(id, user.ID); err != nil {
		if errors.Is(err, service.ErrRelationshipNotFound) {
			response.APIError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("remove controller", "error", err, "user_id", user.ID)
		response.APIError(w, http.StatusInternalServerError, "failed to remove controller")
		return
	}
	observability.Audit(r, "relationship.revoked_by_host", slog.Uint64("relationship_id", uint64(id)))
	response.Success(w, http.StatusOK, nil)
}

func relationshipID(r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "relationshipID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
