package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/daytrip-kr/go-daytrip/app/observability/metrics"
	"github.com/daytrip-kr/go-daytrip/internal/api"
	"github.com/daytrip-kr/go-daytrip/internal/types"
)

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

type startRequest struct {
	// PreviousConversationID, when set, names a conversation the client is
	// abandoning in favour of this one.
	PreviousConversationID string `json:"previous_conversation_id"`
}

// StartConversation opens a new conversation and returns it with the opening
// bot prompt. An optional body may name a previous conversation to discard,
// which is how a client resets.
func (h *HandlerImpl) StartConversation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "StartConversation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat"),
	))
	defer span.End()

	metrics.Get().ConversationsStarted.Add(ctx, 1)

	if r.ContentLength > 0 {
		var req startRequest
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if prev, err := uuid.Parse(req.PreviousConversationID); err == nil {
			h.service.EndConversation(ctx, prev)
		}
	}

	conv, err := h.service.StartConversation(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "starting conversation", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "could not start a conversation")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, conv)
}

type regionRequest struct {
	Region string `json:"region"`
}

func (h *HandlerImpl) SubmitRegion(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "SubmitRegion", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}/region"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req regionRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Region == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "region is required")
		return
	}

	conv, err := h.service.SubmitRegion(ctx, id, req.Region)
	h.respondConversation(w, r, span, conv, err)
}

type themesRequest struct {
	Themes []string `json:"themes"`
}

func (h *HandlerImpl) SubmitThemes(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "SubmitThemes", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}/themes"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req themesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.SubmitThemes(ctx, id, req.Themes)
	h.respondConversation(w, r, span, conv, err)
}

type preferencesRequest struct {
	Preferences []string `json:"preferences"`
}

func (h *HandlerImpl) SubmitPreferences(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "SubmitPreferences", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}/preferences"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.SubmitPreferences(ctx, id, req.Preferences)
	h.respondConversation(w, r, span, conv, err)
}

func (h *HandlerImpl) GetConversation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "GetConversation", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	conv, err := h.service.GetConversation(ctx, id)
	h.respondConversation(w, r, span, conv, err)
}

// GetRouteDetail serves one route stage by index, with the day-long
// congestion context left to the congestion endpoints.
func (h *HandlerImpl) GetRouteDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "GetRouteDetail", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}/routes/{index}"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "index must be an integer")
		return
	}

	route, err := h.service.RouteDetail(ctx, id, index)
	if err != nil {
		h.detailError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, route)
}

func (h *HandlerImpl) GetTourDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "GetTourDetail", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat/{conversationID}/tours/{index}"),
	))
	defer span.End()

	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "index must be an integer")
		return
	}

	tour, err := h.service.TourDetail(ctx, id, index)
	if err != nil {
		h.detailError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, tour)
}

func (h *HandlerImpl) conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *HandlerImpl) respondConversation(w http.ResponseWriter, r *http.Request, span trace.Span, conv *types.Conversation, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrConversationNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "conversation not found or expired")
		case errors.Is(err, ErrWrongState):
			api.ErrorResponse(w, r, http.StatusConflict, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "conversation step failed", slog.Any("error", err))
			span.RecordError(err)
			api.ErrorResponse(w, r, http.StatusInternalServerError, "conversation step failed")
		}
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, conv)
}

func (h *HandlerImpl) detailError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "conversation not found or expired")
	case errors.Is(err, ErrIndexOutOfRange):
		api.ErrorResponse(w, r, http.StatusNotFound, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "detail lookup failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "detail lookup failed")
	}
}
