package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
)

type Server struct {
	svc *application.RateService
}

func NewServer(svc *application.RateService) *Server { return &Server{svc: svc} }

type rateResponse struct {
	Crypto string  `json:"crypto"`
	Fiat   string  `json:"fiat"`
	Rate   float64 `json:"rate"`
}

func (s *Server) GetCurrentRate(w http.ResponseWriter, r *http.Request) {
	crypto, fiat, ok := pairParams(w, r)
	if !ok {
		return
	}
	rate, err := s.svc.GetRate(r.Context(), crypto, fiat)
	if err != nil {
		rateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Crypto: crypto, Fiat: fiat, Rate: rate})
}

type convertResponse struct {
	Crypto    string  `json:"crypto"`
	Fiat      string  `json:"fiat"`
	Amount    float64 `json:"amount"`
	Rate      float64 `json:"rate"`
	Converted float64 `json:"converted"`
}

func (s *Server) ConvertAmount(w http.ResponseWriter, r *http.Request) {
	crypto, fiat, ok := pairParams(w, r)
	if !ok {
		return
	}
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil || amount < 0 {
		badRequest(w, "amount must be a non-negative number")
		return
	}
	rate, err := s.svc.GetRate(r.Context(), crypto, fiat)
	if err != nil {
		rateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{
		Crypto: crypto, Fiat: fiat, Amount: amount, Rate: rate, Converted: amount * rate,
	})
}

type historyRow struct {
	Rate            float64            `json:"rate"`
	Bid             *float64           `json:"bid,omitempty"`
	Ask             *float64           `json:"ask,omitempty"`
	SpreadPercent   *float64           `json:"spread_percent,omitempty"`
	Source          string             `json:"source"`
	ConfidenceScore *float64           `json:"confidence_score,omitempty"`
	Breakdown       map[string]float64 `json:"provider_breakdown,omitempty"`
	ValidUntil      *time.Time         `json:"valid_until,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	crypto, fiat, ok := pairParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		badRequest(w, "from must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		badRequest(w, "to must be an RFC3339 timestamp")
		return
	}
	source := domain.RateSource(q.Get("source"))

	rows, err := s.svc.GetHistoricalRates(r.Context(), crypto, fiat, from, to, source)
	if err != nil {
		internalError(w)
		return
	}
	out := make([]historyRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, historyRow{
			Rate:            row.Rate,
			Bid:             row.Bid,
			Ask:             row.Ask,
			SpreadPercent:   row.SpreadPercent,
			Source:          string(row.Source),
			ConfidenceScore: row.ConfidenceScore,
			Breakdown:       row.ProviderBreakdown,
			ValidUntil:      row.ValidUntil,
			CreatedAt:       row.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func pairParams(w http.ResponseWriter, r *http.Request) (crypto, fiat string, ok bool) {
	q := r.URL.Query()
	pair := domain.NewPair(q.Get("crypto"), q.Get("fiat"))
	if !pair.Valid() {
		badRequest(w, "crypto and fiat must be currency codes")
		return "", "", false
	}
	return pair.Crypto, pair.Fiat, true
}

func rateError(w http.ResponseWriter, err error) {
	if errors.Is(err, application.ErrNoRateAvailable) {
		writeError(w, http.StatusServiceUnavailable, "no rate available")
		return
	}
	internalError(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
