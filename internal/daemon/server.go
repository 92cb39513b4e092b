package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gavago/roomchat/internal/api"
	"github.com/gavago/roomchat/internal/device"
	"github.com/gavago/roomchat/internal/gallery"
	"github.com/gavago/roomchat/internal/netwatch"
	"github.com/gavago/roomchat/internal/push"
	"github.com/gavago/roomchat/internal/status"
	"github.com/gavago/roomchat/internal/store"
	"github.com/gavago/roomchat/internal/stream"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the localhost HTTP surface: the interface a renderer would
// drive, plus the push-subscription collaborator and status inspection.
type Server struct {
	pseudo   string
	engine   *stream.Engine
	capturer *gallery.Capturer
	features *device.Features
	api      *api.Client
	photos   *store.PhotoStore
	settings *store.SettingsStore
	pending  *store.PendingStore
	machine  *status.Machine
	monitor  *netwatch.Monitor
	pushH    *push.Handler
	logger   *zap.Logger

	srv *http.Server
}

// NewServer builds the HTTP surface bound to the configured listen address.
func NewServer(pseudo, listenAddr string, engine *stream.Engine, capturer *gallery.Capturer, features *device.Features, apiClient *api.Client, photos *store.PhotoStore, settings *store.SettingsStore, pending *store.PendingStore, machine *status.Machine, monitor *netwatch.Monitor, pushH *push.Handler, logger *zap.Logger) *Server {
	s := &Server{
		pseudo:   pseudo,
		engine:   engine,
		capturer: capturer,
		features: features,
		api:      apiClient,
		photos:   photos,
		settings: settings,
		pending:  pending,
		machine:  machine,
		monitor:  monitor,
		pushH:    pushH,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomName}/select", s.handleSelectRoom).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleSendText).Methods(http.MethodPost)
	r.HandleFunc("/capture", s.handleCapture).Methods(http.MethodPost)
	r.HandleFunc("/images/{id}", s.handleImage).Methods(http.MethodGet)
	r.HandleFunc("/gallery", s.handleGallery).Methods(http.MethodGet)
	r.HandleFunc("/gallery/{id}", s.handleDeletePhoto).Methods(http.MethodDelete)
	r.HandleFunc("/settings/notifications", s.handleSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings/notifications/{roomName}/toggle", s.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/device/battery", s.handleBattery).Methods(http.MethodPost)
	r.HandleFunc("/device/location", s.handleLocation).Methods(http.MethodPost)
	pushH.Register(r)

	s.srv = &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	s.logger.Info("http surface listening", zap.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pseudo":  s.pseudo,
		"state":   s.machine.Current(),
		"room":    s.engine.Room(),
		"online":  s.monitor.Online(),
		"pending": len(s.pending.ListAll()),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.api.GetRooms(r.Context())
	if err != nil {
		s.logger.Warn("room listing failed", zap.Error(err))
		http.Error(w, "room listing failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleSelectRoom(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["roomName"]
	if err := s.engine.SelectRoom(roomName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Messages())
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if err := s.engine.SendText(body.Content); err != nil {
		if err == stream.ErrNoRoomSelected {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageData string `json:"imageData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ImageData == "" {
		http.Error(w, "imageData is required", http.StatusBadRequest)
		return
	}
	if err := s.capturer.HandleCapture(r.Context(), body.ImageData); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	image, err := s.api.GetImage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "image fetch failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image": image})
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.photos.Load())
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.photos.Delete(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, remaining)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.All())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["roomName"]
	enabled, err := s.settings.Toggle(roomName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{roomName: enabled})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if err := s.features.ShareBattery(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.features.ShareLocation(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
