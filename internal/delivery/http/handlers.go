package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/usecase"
)

type Handler struct {
	searchUsecase *usecase.SearchUsecase
	topicUsecase  *usecase.TopicUsecase
}

func NewHandler(search *usecase.SearchUsecase, topics *usecase.TopicUsecase) *Handler {
	return &Handler{
		searchUsecase: search,
		topicUsecase:  topics,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Search handlers

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var q domain.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.searchUsecase.Search(r.Context(), q)
	if errors.Is(err, usecase.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run search")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Topic handlers

func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	topics, err := h.topicUsecase.ListTopics(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list topics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topics": topics,
		"count":  len(topics),
	})
}

func (h *Handler) GetTopicResults(w http.ResponseWriter, r *http.Request) {
	topicID, err := uuid.Parse(chi.URLParam(r, "topicID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid topic ID")
		return
	}

	result, err := h.topicUsecase.GetTopicResults(r.Context(), topicID)
	if errors.Is(err, usecase.ErrTopicNotFound) {
		writeError(w, http.StatusNotFound, "Topic not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get topic results")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Source health handler

func (h *Handler) GetSourcesHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.searchUsecase.SourcesHealth(ctx),
	})
}
