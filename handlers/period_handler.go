package handlers

import (
	"net/http"

	"github.com/Dosada05/matchday/services"
)

type PeriodHandler struct {
	periodService services.PeriodService
}

func NewPeriodHandler(ps services.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodService: ps}
}

type startPeriodRequest struct {
	PeriodType string `json:"periodType" validate:"required"`
}

func (h *PeriodHandler) StartPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input startPeriodRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	// Тип периода проверяет сервис: сообщение перечисляет допустимые значения
	period, err := h.periodService.StartPeriod(r.Context(), actor, matchID, input.PeriodType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"period": period}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PeriodHandler) EndPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	periodID, err := getIDFromURL(r, "periodID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	period, err := h.periodService.EndPeriod(r.Context(), actor, matchID, periodID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"period": period}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PeriodHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	periods, err := h.periodService.ListPeriods(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"periods": periods}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetActivePeriod answers {"period": null} when no clock is running.
func (h *PeriodHandler) GetActivePeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	period, err := h.periodService.GetActivePeriod(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"period": period}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PeriodHandler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	periodID, err := getIDFromURL(r, "periodID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.periodService.DeletePeriod(r.Context(), actor, matchID, periodID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PeriodHandler) GetElapsedTime(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	elapsed, err := h.periodService.CalculateElapsedTime(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"matchId":        matchID,
		"elapsedSeconds": elapsed,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
