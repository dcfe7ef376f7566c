// Package adminapi exposes the management HTTP API for clients and API
// keys. All endpoints require an authenticated identity in the request
// context; tenant scoping follows the identity's effective client.
package adminapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/precision-bom/precisionBOM/pkg/auth"
	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Handler serves the /v1/clients and /v1/api-keys endpoints.
type Handler struct {
	clients store.ClientStore
	keys    store.APIKeyStore
	logger  *slog.Logger
}

// New creates the admin API handler.
func New(clients store.ClientStore, keys store.APIKeyStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{clients: clients, keys: keys, logger: logger}
}

// Register attaches the admin routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/clients", h.createClient)
	mux.HandleFunc("GET /v1/clients", h.listClients)
	mux.HandleFunc("GET /v1/clients/{id}", h.getClient)
	mux.HandleFunc("DELETE /v1/clients/{id}", h.deactivateClient)
	mux.HandleFunc("POST /v1/api-keys", h.createKey)
	mux.HandleFunc("GET /v1/api-keys", h.listKeys)
	mux.HandleFunc("DELETE /v1/api-keys/{id}", h.revokeKey)
}

// identity pulls the authenticated identity from the context. The auth
// middleware guarantees it is present on every non-bypass route.
func identity(r *http.Request) *auth.Identity {
	return auth.IdentityFromContext(r.Context())
}

// writeAuthzError renders a typed auth failure, or a 500 for anything else.
func (h *Handler) writeAuthzError(w http.ResponseWriter, err error) {
	if e := auth.AsError(err); e != nil {
		auth.WriteError(w, e.StatusCode(), string(e.Kind), e.Message)
		return
	}
	auth.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// writeStoreError maps store errors to HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		auth.WriteError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, store.ErrConflict):
		auth.WriteError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error("store operation failed", "error", err)
		auth.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Clients ---

type createClientRequest struct {
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	OIDCIssuer    string            `json:"oidc_issuer,omitempty"`
	OIDCAudience  string            `json:"oidc_audience,omitempty"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	Settings      map[string]string `json:"settings,omitempty"`
}

type clientResponse struct {
	ClientID      string            `json:"client_id"`
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	IsActive      bool              `json:"is_active"`
	OIDCIssuer    string            `json:"oidc_issuer,omitempty"`
	OIDCAudience  string            `json:"oidc_audience,omitempty"`
	WalletAddress string            `json:"wallet_address,omitempty"`
	Settings      map[string]string `json:"settings,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toClientResponse(c *store.Client) clientResponse {
	return clientResponse{
		ClientID:      c.ClientID,
		Name:          c.Name,
		Slug:          c.Slug,
		IsActive:      c.IsActive,
		OIDCIssuer:    c.OIDCIssuer,
		OIDCAudience:  c.OIDCAudience,
		WalletAddress: c.WalletAddress,
		Settings:      c.Settings,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := auth.RequireScope(id, auth.ScopeAdmin); err != nil {
		h.writeAuthzError(w, err)
		return
	}

	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "name and slug are required")
		return
	}

	client, err := h.clients.CreateClient(r.Context(), store.NewClient{
		Name:          req.Name,
		Slug:          req.Slug,
		OIDCIssuer:    req.OIDCIssuer,
		OIDCAudience:  req.OIDCAudience,
		WalletAddress: req.WalletAddress,
		Settings:      req.Settings,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("client created", "client_id", client.ClientID, "slug", client.Slug, "created_by", id.ClientID)
	writeJSON(w, http.StatusCreated, toClientResponse(client))
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	if id.IsAdmin() {
		clients, err := h.clients.ListClients(r.Context(), includeInactive)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		out := make([]clientResponse, 0, len(clients))
		for _, c := range clients {
			out = append(out, toClientResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	// Non-admins see only their own client.
	client, err := h.clients.GetClient(r.Context(), id.ClientID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, []clientResponse{toClientResponse(client)})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	clientID := r.PathValue("id")

	if err := auth.RequireClientAccess(id, clientID); err != nil {
		h.writeAuthzError(w, err)
		return
	}

	client, err := h.clients.GetClient(r.Context(), clientID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(client))
}

func (h *Handler) deactivateClient(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := auth.RequireScope(id, auth.ScopeAdmin); err != nil {
		h.writeAuthzError(w, err)
		return
	}

	clientID := r.PathValue("id")
	if err := h.clients.DeactivateClient(r.Context(), clientID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("client deactivated", "client_id", clientID, "deactivated_by", id.ClientID)
	w.WriteHeader(http.StatusNoContent)
}

// --- API keys ---

type createKeyRequest struct {
	ClientID string   `json:"client_id"`
	Name     string   `json:"name"`
	Scopes   []string `json:"scopes,omitempty"`
}

type keyResponse struct {
	KeyID     string     `json:"key_id"`
	ClientID  string     `json:"client_id"`
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`

	// Secret is only set on creation. It cannot be recovered later.
	Secret string `json:"secret,omitempty"`
}

func toKeyResponse(k *store.APIKey) keyResponse {
	return keyResponse{
		KeyID:     k.KeyID,
		ClientID:  k.ClientID,
		Name:      k.Name,
		Scopes:    k.Scopes,
		IsActive:  k.IsActive,
		CreatedAt: k.CreatedAt,
		LastUsed:  k.LastUsed,
	}
}

func (h *Handler) createKey(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ClientID == "" {
		req.ClientID = id.ClientID
	}
	if strings.TrimSpace(req.Name) == "" {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	if err := auth.RequireClientAccess(id, req.ClientID); err != nil {
		h.writeAuthzError(w, err)
		return
	}
	if err := auth.RequireScopeGrant(id, req.Scopes); err != nil {
		h.writeAuthzError(w, err)
		return
	}

	// The owning client must exist and be active.
	client, err := h.clients.GetClient(r.Context(), req.ClientID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !client.IsActive {
		auth.WriteError(w, http.StatusConflict, "conflict", "client is inactive")
		return
	}

	key, rawSecret, err := h.keys.CreateKey(r.Context(), store.NewAPIKey{
		ClientID: req.ClientID,
		Name:     req.Name,
		Scopes:   req.Scopes,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("api key created", "key_id", key.KeyID, "client_id", key.ClientID, "created_by", id.ClientID)
	resp := toKeyResponse(key)
	resp.Secret = rawSecret
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var requested *string
	if v := r.URL.Query().Get("client_id"); v != "" {
		requested = &v
	}

	effective := id.EffectiveClientID(requested)
	filter := ""
	if effective != nil {
		filter = *effective
	}

	keys, err := h.keys.ListKeys(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toKeyResponse(k))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	keyID := r.PathValue("id")

	key, err := h.keys.GetKey(r.Context(), keyID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	if err := auth.RequireClientAccess(id, key.ClientID); err != nil {
		h.writeAuthzError(w, err)
		return
	}

	if err := h.keys.RevokeKey(r.Context(), keyID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.logger.Info("api key revoked", "key_id", keyID, "client_id", key.ClientID, "revoked_by", id.ClientID)
	w.WriteHeader(http.StatusNoContent)
}
