// Package httpapi exposes the story engine as a JSON API for the web front-end.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"qissati/internal/domain"
	httpinfra "qissati/internal/infra/http"
	"qissati/internal/media"
	"qissati/internal/usecase/chat"
	"qissati/internal/usecase/settings"
)

// StoryStore is the subset of the synchronization store the API uses.
type StoryStore interface {
	Refresh(ctx context.Context) error
	SubmitAnswer(ctx context.Context, a domain.Answer) (domain.StudentResponse, error)
	AddStory(ctx context.Context, f domain.StoryFields) (string, error)
	EditStory(ctx context.Context, id string, f domain.StoryFields) error
	DeleteStory(ctx context.Context, id string) error
	DeleteResponse(ctx context.Context, id string) error
	Stories() []domain.Story
	Responses() []domain.StudentResponse
	ResponsesFor(title string) []domain.StudentResponse
	Story(id string) (domain.Story, bool)
	Displayed() (domain.Story, bool)
	Select(id string) error
	ClearSelection()
	Status() domain.ConnectionStatus
	Busy() bool
}

// ChatService is the session manager bound to the displayed story.
type ChatService interface {
	Send(ctx context.Context, text string) (domain.ChatMessage, error)
	Transcript() []domain.ChatMessage
	Thinking() bool
	Reset()
}

// SettingsService manages the endpoint and admin secret.
type SettingsService interface {
	Authenticate(password string) bool
	Update(ctx context.Context, u settings.Update) error
	EndpointURL() string
}

// Handler wires HTTP routes to the use cases.
type Handler struct {
	store    StoryStore
	chat     ChatService
	settings SettingsService
	log      zerolog.Logger
}

// NewHandler creates a handler.
func NewHandler(store StoryStore, chatSvc ChatService, settingsSvc SettingsService, logger zerolog.Logger) *Handler {
	return &Handler{store: store, chat: chatSvc, settings: settingsSvc, log: logger}
}

// Mount registers every route under /api/v1.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Post("/refresh", h.refresh)
		r.Get("/stories", h.listStories)
		r.Get("/stories/displayed", h.displayedStory)
		r.Get("/stories/{id}", h.getStory)
		r.Put("/selection", h.selectStory)
		r.Delete("/selection", h.clearSelection)
		r.Post("/answers", h.submitAnswer)
		r.Get("/chat", h.transcript)
		r.Post("/chat", h.sendChat)
		r.Delete("/chat", h.resetChat)
		r.Post("/login", h.login)

		r.Group(func(admin chi.Router) {
			admin.Use(httpinfra.AdminAuthMiddleware(h.settings))
			admin.Get("/responses", h.listResponses)
			admin.Delete("/responses/{id}", h.deleteResponse)
			admin.Post("/stories", h.addStory)
			admin.Put("/stories/{id}", h.editStory)
			admin.Delete("/stories/{id}", h.deleteStory)
			admin.Get("/settings", h.getSettings)
			admin.Put("/settings", h.updateSettings)
		})
	})
}

type storyDTO struct {
	domain.Story
	VideoID      string `json:"videoId,omitempty"`
	EmbedURL     string `json:"embedUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func toStoryDTO(st domain.Story) storyDTO {
	dto := storyDTO{Story: st}
	if !st.IsVideo() {
		return dto
	}
	if id, ok := media.YouTubeID(st.VideoURL); ok {
		dto.VideoID = id
		dto.EmbedURL = media.EmbedURL(id)
		dto.ThumbnailURL = media.ThumbnailURL(id)
	}
	return dto
}

func toStoryDTOs(stories []domain.Story) []storyDTO {
	out := make([]storyDTO, 0, len(stories))
	for _, st := range stories {
		out = append(out, toStoryDTO(st))
	}
	return out
}

type statusResponse struct {
	Connection domain.ConnectionStatus `json:"connection"`
	Busy       bool                    `json:"busy"`
	Thinking   bool                    `json:"thinking"`
	Stories    int                     `json:"stories"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, statusResponse{
		Connection: h.store.Status(),
		Busy:       h.store.Busy(),
		Thinking:   h.chat.Thinking(),
		Stories:    len(h.store.Stories()),
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.status(w, r)
}

func (h *Handler) listStories(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, toStoryDTOs(h.store.Stories()))
}

func (h *Handler) displayedStory(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store.Displayed()
	if !ok {
		h.writeErr(w, r, domain.ErrNoStory)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, toStoryDTO(st))
}

func (h *Handler) getStory(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store.Story(chi.URLParam(r, "id"))
	if !ok {
		h.writeErr(w, r, domain.ErrStoryNotFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, toStoryDTO(st))
}

type selectionRequest struct {
	ID string `json:"id"`
}

func (h *Handler) selectStory(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.Select(req.ID); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.displayedStory(w, r)
}

func (h *Handler) clearSelection(w http.ResponseWriter, r *http.Request) {
	h.store.ClearSelection()
	h.displayedStory(w, r)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req domain.Answer
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.store.SubmitAnswer(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, resp)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply      *domain.ChatMessage  `json:"reply,omitempty"`
	Transcript []domain.ChatMessage `json:"transcript"`
}

func (h *Handler) transcript(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, chatResponse{Transcript: nonNil(h.chat.Transcript())})
}

func (h *Handler) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := h.chat.Send(r.Context(), req.Message)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, chatResponse{Reply: &reply, Transcript: nonNil(h.chat.Transcript())})
}

func (h *Handler) resetChat(w http.ResponseWriter, r *http.Request) {
	h.chat.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if !h.settings.Authenticate(req.Password) {
		h.writeErr(w, r, domain.ErrUnauthorized)
		return
	}
	// The admin screen opens with fresh data.
	if err := h.store.Refresh(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("httpapi: refresh after login failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listResponses(w http.ResponseWriter, r *http.Request) {
	if title := r.URL.Query().Get("storyTitle"); title != "" {
		httpinfra.WriteJSON(w, http.StatusOK, nonNil(h.store.ResponsesFor(title)))
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, nonNil(h.store.Responses()))
}

func (h *Handler) deleteResponse(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteResponse(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addStoryResponse struct {
	ID string `json:"id"`
}

func (h *Handler) addStory(w http.ResponseWriter, r *http.Request) {
	var req domain.StoryFields
	if !decode(w, r, &req) {
		return
	}
	id, err := h.store.AddStory(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusCreated, addStoryResponse{ID: id})
}

func (h *Handler) editStory(w http.ResponseWriter, r *http.Request) {
	var req domain.StoryFields
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.EditStory(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteStory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteStory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsResponse struct {
	EndpointURL string `json:"endpointUrl"`
	Message     string `json:"message,omitempty"`
}

type settingsRequest struct {
	EndpointURL     string `json:"endpointUrl"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, settingsResponse{EndpointURL: h.settings.EndpointURL()})
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.settings.Update(r.Context(), settings.Update{
		EndpointURL:     req.EndpointURL,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, settingsResponse{EndpointURL: h.settings.EndpointURL(), Message: settings.MsgSaved})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeErr maps domain errors to status codes.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		network    *domain.NetworkError
		remote     *domain.RemoteError
		parse      *domain.ParseError
	)
	switch {
	case errors.As(err, &validation):
		httpinfra.WriteJSON(w, http.StatusBadRequest, httpinfra.ErrorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, domain.ErrEmptyMessage):
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httpinfra.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrStoryNotFound), errors.Is(err, domain.ErrNoStory):
		httpinfra.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrChatBusy), errors.Is(err, chat.ErrReplyDiscarded):
		httpinfra.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreClosed):
		httpinfra.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &network), errors.As(err, &remote), errors.As(err, &parse):
		h.log.Warn().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("httpapi: remote failure")
		httpinfra.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("httpapi: request failed")
		httpinfra.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
