package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/services"
)

type LifecycleHandler struct {
	lifecycleService services.LifecycleService
}

func NewLifecycleHandler(ls services.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycleService: ls}
}

type cancelMatchRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type transitionFunc func(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error)

func (h *LifecycleHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.lifecycleService.Start)
}

func (h *LifecycleHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.lifecycleService.Pause)
}

func (h *LifecycleHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.lifecycleService.Resume)
}

// Complete accepts an optional final score; an empty body completes without one.
func (h *LifecycleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var input services.CompleteInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if fields := validateInput(input); fields != nil {
		failedValidationResponse(w, r, fields)
		return
	}
	h.apply(w, r, func(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error) {
		return h.lifecycleService.Complete(ctx, actor, matchID, input)
	})
}

func (h *LifecycleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var input cancelMatchRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if fields := validateInput(input); fields != nil {
		failedValidationResponse(w, r, fields)
		return
	}
	h.apply(w, r, func(ctx context.Context, actor models.Actor, matchID int) (*models.MatchState, error) {
		return h.lifecycleService.Cancel(ctx, actor, matchID, input.Reason)
	})
}

func (h *LifecycleHandler) GetState(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.lifecycleService.GetState(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LifecycleHandler) apply(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := fn(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
