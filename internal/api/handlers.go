package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// webhookHandler receives Telegram updates. It always acknowledges with
// 200 so the platform never re-delivers on processing failures; the dedup
// ledger handles the retries that slip through anyway.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Active")); err != nil {
			slog.Error("webhookHandler failed to write probe response", "error", err)
		}
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("webhookHandler received undecodable update", "error", err)
	} else if ev, ok := telegram.DecodeUpdate(update); !ok {
		slog.Debug("webhookHandler ignoring unroutable update", "updateID", update.UpdateID)
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), s.processTimeout)
		defer cancel()
		s.dispatcher.Handle(ctx, ev)
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("webhookHandler failed to write acknowledgement", "error", err)
	}
}

// healthHandler reports liveness, probing the store with a cheap count.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	if _, err := s.store.CountActors(r.Context()); err != nil {
		slog.Error("healthHandler store probe failed", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("store unavailable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", map[string]any{
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}))
}

// channelsHandler lists promoted channels.
func (s *Server) channelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	channels, err := s.store.ListChannels(r.Context())
	if err != nil {
		slog.Error("channelsHandler failed to list channels", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list channels"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(channels))
}

// repliesHandler lists configured custom replies.
func (s *Server) repliesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	replies, err := s.store.ListCustomReplies(r.Context())
	if err != nil {
		slog.Error("repliesHandler failed to list custom replies", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list custom replies"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(replies))
}

// statsHandler reports aggregate usage counts.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	ctx := r.Context()
	actors, err := s.store.CountActors(ctx)
	if err != nil {
		slog.Error("statsHandler failed to count actors", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to collect stats"))
		return
	}
	motivations, err := s.store.CountMotivations(ctx)
	if err != nil {
		slog.Error("statsHandler failed to count motivations", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to collect stats"))
		return
	}
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		slog.Error("statsHandler failed to list channels", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to collect stats"))
		return
	}
	replies, err := s.store.ListCustomReplies(ctx)
	if err != nil {
		slog.Error("statsHandler failed to list custom replies", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to collect stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"actors":         actors,
		"motivations":    motivations,
		"channels":       len(channels),
		"custom_replies": len(replies),
	}))
}
