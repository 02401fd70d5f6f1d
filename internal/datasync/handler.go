package datasync

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/httputil"
	"campusreg/pkg/requestcontext"
)

const heartbeatInterval = 25 * time.Second

// Handler streams topics to browsers as server-sent events. Each request is
// one View: it closes when the client disconnects.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
	streams prometheus.Gauge
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// WithStreamGauge tracks the number of open streams in g.
func (h *Handler) WithStreamGauge(g prometheus.Gauge) *Handler {
	h.streams = g
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/live/{topic}", h.HandleStream)
	r.Delete("/live/session", h.HandleEndSession)
}

// HandleStream handles GET /live/{topic}.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	topic, err := ParseTopic(chi.URLParam(r, "topic"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if owner, scoped := topic.UserScoped(); scoped && owner != userID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "topic belongs to another user"))
		return
	}

	view, err := h.manager.Session(sessionKey(r)).NewView()
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "session has ended"))
		return
	}
	defer view.Close()

	pushes := make(chan Collection, 1)
	err = view.Subscribe(topic, func(c Collection) {
		// Only the newest collection matters.
		select {
		case pushes <- c:
		default:
			select {
			case <-pushes:
			default:
			}
			pushes <- c
		}
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "live subscribe failed", "topic", string(topic), "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "live updates unavailable"))
		return
	}
	initial, err := view.Snapshot(ctx, topic)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load topic"))
		return
	}

	if h.streams != nil {
		h.streams.Inc()
		defer h.streams.Dec()
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, rc, initial); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-view.Done():
			return
		case c := <-pushes:
			if err := writeEvent(w, rc, c); err != nil {
				h.logger.DebugContext(ctx, "live stream closed", "topic", string(topic), "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// HandleEndSession handles DELETE /live/session: every stream opened under
// the caller's session stops.
func (h *Handler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	if requestcontext.UserID(r.Context()).IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	h.manager.EndSession(sessionKey(r))
	w.WriteHeader(http.StatusNoContent)
}

// sessionKey is the token's session id. The JWT adapter already substitutes the
// jti for a missing sid, so the user fallback only applies to validators that
// supply neither.
func sessionKey(r *http.Request) string {
	ctx := r.Context()
	if sid := requestcontext.SessionID(ctx); sid != "" {
		return sid
	}
	return "user:" + requestcontext.UserID(ctx).String()
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, c Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: collection\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
