// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/criteo-forks/essync/lifecycle"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Emitter dispatches a lifecycle event.
type Emitter interface {
	Emit(ctx context.Context, event string) error
}

var adminEvents = map[string]string{
	"create":   lifecycle.EventBeforeCreate,
	"drop":     lifecycle.EventBeforeDrop,
	"recreate": lifecycle.EventBeforeRecreate,
}

type adminHandler struct {
	// one lifecycle event at a time
	mu      sync.Mutex
	emitter Emitter
}

// NewAdminRouter exposes POST /indices/{create,drop,recreate}.
func NewAdminRouter(emitter Emitter) http.Handler {
	h := &adminHandler{emitter: emitter}
	r := mux.NewRouter()
	r.HandleFunc("/indices/{event}", h.handleEvent).Methods(http.MethodPost)
	return r
}

func (h *adminHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := adminEvents[mux.Vars(r)["event"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown event"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	log.WithField("remote", r.RemoteAddr).Info("Lifecycle event ", event, " requested")
	if err := h.emitter.Emit(r.Context(), event); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"event": event, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"event": event, "status": "done"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Unable to write admin response: ", err)
	}
}
