package push

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxNotifyPayload bounds the body accepted on the notify endpoint.
const maxNotifyPayload = 64 << 10

// Handler serves the subscription endpoints on the daemon's local HTTP
// surface.
type Handler struct {
	store  SubscriptionStore
	sender Sender
	logger *zap.Logger
}

// NewHandler wires the push handlers.
func NewHandler(store SubscriptionStore, sender Sender, logger *zap.Logger) *Handler {
	return &Handler{store: store, sender: sender, logger: logger}
}

// Register mounts the push routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/push/subscriptions", h.list).Methods(http.MethodGet)
	r.HandleFunc("/push/subscriptions", h.subscribe).Methods(http.MethodPost)
	r.HandleFunc("/push/subscriptions/{userId}", h.unsubscribe).Methods(http.MethodDelete)
	r.HandleFunc("/push/notify/{userId}", h.notify).Methods(http.MethodPost)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var sub Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid subscription body", http.StatusBadRequest)
		return
	}
	if sub.UserID == "" || sub.Endpoint == "" {
		http.Error(w, "userId and endpoint are required", http.StatusBadRequest)
		return
	}

	h.store.Set(sub)
	h.logger.Info("push subscription registered", zap.String("userId", sub.UserID))
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if _, ok := h.store.Get(userID); !ok {
		http.Error(w, "unknown subscription", http.StatusNotFound)
		return
	}

	h.store.Delete(userID)
	h.logger.Info("push subscription removed", zap.String("userId", userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	sub, ok := h.store.Get(userID)
	if !ok {
		http.Error(w, "unknown subscription", http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyPayload))
	if err != nil {
		http.Error(w, "unreadable payload", http.StatusBadRequest)
		return
	}

	if err := h.sender.Send(sub, payload); err != nil {
		h.logger.Warn("push delivery failed", zap.String("userId", userID), zap.Error(err))
		http.Error(w, "delivery failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
