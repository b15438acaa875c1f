package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tovarim/mealrota/internal/demand"
	"github.com/tovarim/mealrota/internal/model"
	"github.com/tovarim/mealrota/internal/register"
)

type DemandHandler struct {
	synth *demand.Synthesizer
	coord *register.Coordinator
}

func NewDemandHandler(synth *demand.Synthesizer, coord *register.Coordinator) *DemandHandler {
	return &DemandHandler{synth: synth, coord: coord}
}

// List handles GET /api/demands?districts=D1,D2&from=...&to=...&status=...&volunteer=...
func (h *DemandHandler) List(w http.ResponseWriter, r *http.Request) {
	q := demand.Query{VolunteerID: r.URL.Query().Get("volunteer")}

	if raw := strings.TrimSpace(r.URL.Query().Get("districts")); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				q.Districts = append(q.Districts, d)
			}
		}
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
		return
	}
	q.From, q.To = from, to

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			switch status := model.SlotStatus(strings.TrimSpace(s)); status {
			case model.StatusAvailable, model.StatusOccupied, model.StatusCancelled:
				q.Statuses = append(q.Statuses, status)
			default:
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status " + s})
				return
			}
		}
	}

	slots, err := h.synth.Synthesize(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to load demands"})
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type bookRequest struct {
	FamilyID    string `json:"family_id"`
	CityID      string `json:"city_id"`
	VolunteerID string `json:"volunteer_id"`
}

// Book handles POST /api/demands/{id}/book.
func (h *DemandHandler) Book(w http.ResponseWriter, r *http.Request) {
	slotID := r.PathValue("id")

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.FamilyID == "" || req.CityID == "" || req.VolunteerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family_id, city_id and volunteer_id are required"})
		return
	}

	err := h.coord.Book(r.Context(), slotID, req.FamilyID, req.CityID, req.VolunteerID)
	switch {
	case errors.Is(err, register.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "someone else is updating this slot right now"})
	case errors.Is(err, register.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "this slot no longer exists"})
	case errors.Is(err, demand.ErrBadSlotID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed slot id"})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "booking failed"})
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "booked"})
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/demands/{id}/cancel.
func (h *DemandHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	slotID := r.PathValue("id")

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	err := h.coord.Cancel(r.Context(), slotID, req.Reason)
	switch {
	case errors.Is(err, register.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "someone else is updating this slot right now"})
	case errors.Is(err, register.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "this slot no longer exists"})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "cancellation failed"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
