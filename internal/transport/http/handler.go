package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/poker-service/internal/domain"
	"github.com/cwrk-planet/poker-service/internal/service"
	"github.com/cwrk-planet/poker-service/internal/store"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	roomSvc *service.RoomService
}

func NewHandler(room *service.RoomService) *Handler {
	return &Handler{roomSvc: room}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	rooms, next, err := h.roomSvc.ListRooms(r.Context(), limit, cursor)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, RoomItem{
			Name:         rm.Name,
			Topic:        rm.Topic,
			Participants: len(rm.Users),
			Rounds:       len(rm.Rounds),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{name}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	room, err := h.roomSvc.GetRoom(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := RoomDetailResponse{
		Name:   room.Name,
		Topic:  room.Topic,
		Users:  make([]ParticipantItem, 0, len(room.Users)),
		Rounds: len(room.Rounds),
	}
	for _, u := range room.Users {
		resp.Users = append(resp.Users, ParticipantItem{
			UID:         u.UID,
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
			Online:      u.Online,
			Role:        string(u.Role),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{name}/rounds
func (h *Handler) GetRounds(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rounds, err := h.roomSvc.Rounds(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRounds:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := RoundsResponse{Items: make([]RoundItem, 0, len(rounds))}
	for _, rd := range rounds {
		item := RoundItem{
			ID:        rd.ID,
			Topic:     rd.Topic,
			Results:   rd.Results,
			Users:     make([]RoundVote, 0, len(rd.Users)),
			Timestamp: rd.Timestamp,
		}
		for _, u := range rd.Users {
			item.Users = append(item.Users, RoundVote{
				UID:         u.UID,
				DisplayName: u.DisplayName,
				Vote:        u.Vote,
			})
		}
		resp.Items = append(resp.Items, item)
	}

	writeJSON(w, http.StatusOK, resp)
}
