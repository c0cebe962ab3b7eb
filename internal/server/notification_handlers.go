package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	notificationdomain "storyloom/backend/internal/notification/domain"
	notificationservice "storyloom/backend/internal/notification/service"
	"storyloom/backend/internal/server/middleware"
)

// NotificationAPI is the notification engine used by the HTTP handlers.
type NotificationAPI interface {
	CreateNotification(ctx context.Context, in notificationservice.CreateInput) (*notificationdomain.Notification, error)
	GetNotificationsForUser(ctx context.Context, userID string, limit, offset int) ([]*notificationdomain.View, error)
	Respond(ctx context.Context, in notificationservice.RespondInput) (*notificationdomain.Notification, error)
}

// RealtimeHub streams notifications over websocket connections.
type RealtimeHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

type createNotificationRequest struct {
	Email      string `json:"email"`
	ToUserID   string `json:"toUserId"`
	StoryID    string `json:"storyId"`
	LegacyStID string `json:"story_id"`
	Type       string `json:"type"`
}

type respondRequest struct {
	Accept    *bool  `json:"accept"`
	Character string `json:"character"`
}

type notificationHandler struct {
	notifications NotificationAPI
	hub           RealtimeHub
	errs          errorWriter
}

func (h *notificationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	views, err := h.notifications.GetNotificationsForUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Notifications fetched successfully", views)
}

func (h *notificationHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}
	if req.StoryID == "" {
		req.StoryID = req.LegacyStID
	}
	if req.ToUserID == "" && req.Email != "" {
		if err := validateEmail(req.Email); err != nil {
			h.errs.write(w, r, err)
			return
		}
	}
	if err := validateNotificationType(req.Type); err != nil {
		h.errs.write(w, r, err)
		return
	}
	n, err := h.notifications.CreateNotification(r.Context(), notificationservice.CreateInput{
		FromUserID: userID,
		ToEmail:    req.Email,
		ToUserID:   req.ToUserID,
		StoryID:    req.StoryID,
		Type:       notificationdomain.Type(req.Type),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Notification created successfully", n)
}

func (h *notificationHandler) respond(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	var req respondRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		h.errs.write(w, r, err)
		return
	}
	resp, err := h.notifications.Respond(r.Context(), notificationservice.RespondInput{
		NotificationID: chi.URLParam(r, "id"),
		UserID:         userID,
		Accept:         req.Accept,
		Character:      req.Character,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Notification deleted successfully", resp)
}

func (h *notificationHandler) stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		h.errs.write(w, r, notificationservice.ErrUserIDRequired)
		return
	}
	h.hub.ServeWS(w, r, userID)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalidf("%s must be a non-negative integer", name)
	}
	return v, nil
}
