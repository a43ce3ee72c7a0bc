package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gospel5/gospel5/internal/auth"
	"github.com/gospel5/gospel5/internal/friendship"
	"github.com/gospel5/gospel5/internal/model"
	"github.com/gospel5/gospel5/internal/store"
)

type FriendshipHandler struct {
	manager   *friendship.Manager
	userStore *store.UserStore
	mailer    Mailer
	logger    *slog.Logger
}

func NewFriendshipHandler(m *friendship.Manager, us *store.UserStore, mailer Mailer, logger *slog.Logger) *FriendshipHandler {
	return &FriendshipHandler{manager: m, userStore: us, mailer: mailer, logger: logger}
}

// writeFriendshipError maps manager errors onto HTTP statuses.
func (h *FriendshipHandler) writeFriendshipError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, friendship.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, friendship.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, friendship.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, friendship.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

type friendRequest struct {
	AddresseeID int64  `json:"addressee_id"`
	Email       string `json:"email"`
}

func (h *FriendshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var addressee *model.User
	var err error
	switch {
	case req.AddresseeID != 0:
		addressee, err = h.userStore.GetByID(req.AddresseeID)
	case strings.TrimSpace(req.Email) != "":
		addressee, err = h.userStore.GetByEmail(strings.TrimSpace(req.Email))
	default:
		writeError(w, http.StatusBadRequest, "addressee_id or email is required")
		return
	}
	if err != nil {
		h.logger.Error("lookup addressee", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if addressee == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	requesterID := auth.UserID(r.Context())
	edge, err := h.manager.SendRequest(requesterID, addressee.ID)
	if err != nil {
		h.writeFriendshipError(w, err, "send friend request")
		return
	}

	h.notifyByEmail(requesterID, addressee)

	writeJSON(w, http.StatusCreated, edge)
}

func (h *FriendshipHandler) notifyByEmail(requesterID int64, addressee *model.User) {
	if h.mailer == nil || !h.mailer.Configured() {
		return
	}
	requester, err := h.userStore.GetByID(requesterID)
	if err != nil || requester == nil {
		h.logger.Error("lookup requester for notice", "user_id", requesterID, "error", err)
		return
	}
	name := strings.TrimSpace(requester.FirstName + " " + requester.LastName)
	if err := h.mailer.SendFriendRequestNotice(addressee.Email, name); err != nil {
		h.logger.Error("send friend request notice", "error", err)
	}
}

func (h *FriendshipHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	edge, err := h.manager.RespondToRequest(auth.UserID(r.Context()), r.PathValue("id"), model.FriendshipStatus(req.Decision))
	if err != nil {
		h.writeFriendshipError(w, err, "respond to friend request")
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (h *FriendshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	friendID, err := parseIDParam(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.manager.RemoveFriend(auth.UserID(r.Context()), friendID); err != nil {
		h.writeFriendshipError(w, err, "remove friend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendshipHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.ListFriends(auth.UserID(r.Context()))
	if err != nil {
		h.writeFriendshipError(w, err, "list friends")
		return
	}
	users, err := h.userStore.ListByIDs(ids)
	if err != nil {
		h.logger.Error("load friends", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// requestView is a pending edge along with the user on the other side.
type requestView struct {
	model.Friendship
	User *model.User `json:"user"`
}

func (h *FriendshipHandler) withUsers(userID int64, edges []model.Friendship) ([]requestView, error) {
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(userID))
	}
	users, err := h.userStore.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	views := make([]requestView, 0, len(edges))
	for _, e := range edges {
		views = append(views, requestView{Friendship: e, User: byID[e.Other(userID)]})
	}
	return views, nil
}

func (h *FriendshipHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	edges, err := h.manager.ListIncomingRequests(userID)
	if err != nil {
		h.writeFriendshipError(w, err, "list incoming requests")
		return
	}
	views, err := h.withUsers(userID, edges)
	if err != nil {
		h.logger.Error("load requesters", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list incoming requests")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *FriendshipHandler) ListOutgoing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	edges, err := h.manager.ListOutgoingRequests(userID)
	if err != nil {
		h.writeFriendshipError(w, err, "list outgoing requests")
		return
	}
	views, err := h.withUsers(userID, edges)
	if err != nil {
		h.logger.Error("load addressees", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list outgoing requests")
		return
	}
	writeJSON(w, http.StatusOK, views)
}
