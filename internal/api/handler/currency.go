package handler

import (
	"net/http"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CurrencyHandler serves the currency table and its administration.
type CurrencyHandler struct {
	currencies *service.CurrencyService
}

func NewCurrencyHandler(currencies *service.CurrencyService) *CurrencyHandler {
	return &CurrencyHandler{currencies: currencies}
}

// RateRequest sets a currency's rates. Rate fills whichever side is omitted.
type RateRequest struct {
	Rate     decimal.Decimal `json:"rate"`
	BuyRate  decimal.Decimal `json:"buy_rate"`
	SellRate decimal.Decimal `json:"sell_rate"`
}

type CountryRequest struct {
	CurrencyCode string `json:"currency_code"`
}

type FeeRequest struct {
	FeePercent decimal.Decimal `json:"fee_percent"`
}

// Snapshot handles GET /v1/currencies
func (h *CurrencyHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.currencies.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, r, "get_currencies", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"reference_currency":  h.currencies.Reference(),
		"rates":               snap.Rates,
		"country_currency":    snap.CountryCurrency,
		"default_fee_percent": snap.DefaultFeePercent,
	})
}

// UpsertRate handles PUT /v1/currencies/{code}
func (h *CurrencyHandler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req RateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rate := models.CurrencyRate{Code: chi.URLParam(r, "code"), BuyRate: req.BuyRate, SellRate: req.SellRate}
	if rate.BuyRate.IsZero() {
		rate.BuyRate = req.Rate
	}
	if rate.SellRate.IsZero() {
		rate.SellRate = req.Rate
	}
	saved, err := h.currencies.UpsertRate(r.Context(), p, rate)
	if err != nil {
		respondServiceError(w, r, "upsert_rate", err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

// UpsertCountry handles PUT /v1/countries/{code}
func (h *CurrencyHandler) UpsertCountry(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req CountryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	saved, err := h.currencies.UpsertCountry(r.Context(), p, models.CountryCurrency{
		CountryCode:  chi.URLParam(r, "code"),
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		respondServiceError(w, r, "upsert_country", err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

// SetDefaultFee handles PUT /v1/settings/fee
func (h *CurrencyHandler) SetDefaultFee(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req FeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.currencies.SetDefaultFee(r.Context(), p, req.FeePercent); err != nil {
		respondServiceError(w, r, "set_default_fee", err)
		return
	}
	RespondJSON(w, http.StatusOK, req)
}

// SetTeacherFeeOverride handles PUT /v1/teachers/{id}/fee-override
func (h *CurrencyHandler) SetTeacherFeeOverride(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	teacherID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req FeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.currencies.SetTeacherFeeOverride(r.Context(), p, teacherID, req.FeePercent); err != nil {
		respondServiceError(w, r, "set_teacher_fee_override", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"teacher_id": teacherID, "fee_percent": req.FeePercent})
}
