package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/lorraine/cropcast/internal/contracts"
)

// PredictionHandler serves read-only prediction endpoints.
type PredictionHandler struct {
	store  contracts.PredictionStore
	models contracts.ModelRegistry
	log    zerolog.Logger
}

// NewPredictionHandler creates a handler.
func NewPredictionHandler(store contracts.PredictionStore, models contracts.ModelRegistry, log zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		store:  store,
		models: models,
		log:    log.With().Str("component", "api.predictions").Logger(),
	}
}

// itemResponse is one entry of GET /api/items.
type itemResponse struct {
	ItemID int `json:"item_id"`
}

// ListItems returns every item that has a trained model.
// GET /api/items
func (h *PredictionHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.models.Items()
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{ItemID: int(item)})
	}
	respondJSON(w, http.StatusOK, out)
}

// predictionResponse is one entry of GET /api/predictions/{item}.
type predictionResponse struct {
	ItemID         int      `json:"item_id"`
	PredictDate    string   `json:"predict_date"`
	TargetDate     string   `json:"target_date"`
	PredictedPrice float64  `json:"predicted_price"`
	ActualPrice    *float64 `json:"actual_price,omitempty"`
	ErrorPct       *float64 `json:"error_pct,omitempty"`
}

// GetPredictions returns an item's predictions for a date range.
// GET /api/predictions/{item}?from=2026-01-01&to=2026-01-31
// The range defaults to the last 30 days through the coming week.
func (h *PredictionHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemStr := mux.Vars(r)["item"]
	itemID, err := strconv.Atoi(itemStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "item must be an integer")
		return
	}
	item := contracts.ItemID(itemID)

	if _, ok := h.models.Resolve(item); !ok {
		respondError(w, http.StatusNotFound, "unknown item")
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, contracts.Horizon)

	if s := r.URL.Query().Get("from"); s != "" {
		from, err = time.Parse("2006-01-02", s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		to, err = time.Parse("2006-01-02", s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}

	records, err := h.store.ListByItem(ctx, item, from, to)
	if err != nil {
		h.log.Error().Err(err).Int("item_id", itemID).Msg("failed to list predictions")
		respondError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	out := make([]predictionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, predictionResponse{
			ItemID:         int(rec.ItemID),
			PredictDate:    rec.PredictDate.Format("2006-01-02"),
			TargetDate:     rec.TargetDate.Format("2006-01-02"),
			PredictedPrice: rec.PredictedPrice,
			ActualPrice:    rec.ActualPrice,
			ErrorPct:       rec.ErrorMetric,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
