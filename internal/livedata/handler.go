package livedata

import (
	"net/http"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// NetworkNodes handles GET /live/network-nodes
func (h *Handler) NetworkNodes(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.NetworkNodes(r.Context()))
}

// NetworkConnections handles GET /live/network-connections
func (h *Handler) NetworkConnections(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.NetworkConnections(r.Context()))
}

// SecurityEvents handles GET /live/security-events
func (h *Handler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.SecurityEvents(r.Context()))
}

// OpenVASStatus handles GET /live/openvas-status
func (h *Handler) OpenVASStatus(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.OpenVASStatus(r.Context()))
}

func (h *Handler) ScanNetwork(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}
	var dto ScanNetworkDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	nodes, err := h.Service.ScanNetwork(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ScanNetworkResponse{Message: "Network scan completed", Nodes: nodes})
}

func (h *Handler) ScanVulnerabilities(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}
	var dto ScanVulnerabilitiesDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	resp, err := h.Service.ScanVulnerabilities(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) FetchSecurityEvents(w http.ResponseWriter, r *http.Request) {
	var dto FetchSecurityEventsDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	found, err := h.Service.FetchSecurityEvents(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SecurityEventsResponse{Message: "Security events fetched", Events: found})
}
