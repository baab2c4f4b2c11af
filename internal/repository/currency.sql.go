package repository

import (
	"context"

	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultFeeSettingKey = "default_fee_percent"

const listCurrencyRates = `-- name: ListCurrencyRates :many
SELECT code, buy_rate::text, sell_rate::text, updated_at FROM currency_rates ORDER BY code
`

func (q *Queries) ListCurrencyRates(ctx context.Context) ([]models.CurrencyRate, error) {
	rows, err := q.db.Query(ctx, listCurrencyRates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.CurrencyRate
	for rows.Next() {
		var (
			r         models.CurrencyRate
			buy, sell string
		)
		if err := rows.Scan(&r.Code, &buy, &sell, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if r.BuyRate, err = parseNumeric("buy_rate", buy); err != nil {
			return nil, err
		}
		if r.SellRate, err = parseNumeric("sell_rate", sell); err != nil {
			return nil, err
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCurrencyRate = `-- name: UpsertCurrencyRate :exec
INSERT INTO currency_rates (code, buy_rate, sell_rate, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET buy_rate = EXCLUDED.buy_rate, sell_rate = EXCLUDED.sell_rate, updated_at = EXCLUDED.updated_at
`

func (q *Queries) UpsertCurrencyRate(ctx context.Context, r models.CurrencyRate) error {
	_, err := q.db.Exec(ctx, upsertCurrencyRate, r.Code, numericParam(r.BuyRate), numericParam(r.SellRate), r.UpdatedAt)
	return err
}

const listCountryCurrencies = `-- name: ListCountryCurrencies :many
SELECT country_code, currency_code FROM country_currencies ORDER BY country_code
`

func (q *Queries) ListCountryCurrencies(ctx context.Context) ([]models.CountryCurrency, error) {
	rows, err := q.db.Query(ctx, listCountryCurrencies)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.CountryCurrency
	for rows.Next() {
		var m models.CountryCurrency
		if err := rows.Scan(&m.CountryCode, &m.CurrencyCode); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertCountryCurrency = `-- name: UpsertCountryCurrency :exec
INSERT INTO country_currencies (country_code, currency_code) VALUES ($1, $2)
ON CONFLICT (country_code) DO UPDATE SET currency_code = EXCLUDED.currency_code
`

func (q *Queries) UpsertCountryCurrency(ctx context.Context, m models.CountryCurrency) error {
	_, err := q.db.Exec(ctx, upsertCountryCurrency, m.CountryCode, m.CurrencyCode)
	return err
}

const getSetting = `-- name: GetSetting :one
SELECT value FROM platform_settings WHERE key = $1
`

func (q *Queries) GetDefaultFeePercent(ctx context.Context) (decimal.Decimal, error) {
	var value string
	if err := q.db.QueryRow(ctx, getSetting, defaultFeeSettingKey).Scan(&value); err != nil {
		return decimal.Zero, err
	}
	return parseNumeric(defaultFeeSettingKey, value)
}

const upsertSetting = `-- name: UpsertSetting :exec
INSERT INTO platform_settings (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
`

func (q *Queries) SetDefaultFeePercent(ctx context.Context, p decimal.Decimal) error {
	_, err := q.db.Exec(ctx, upsertSetting, defaultFeeSettingKey, p.String())
	return err
}

const getTeacherFeeOverride = `-- name: GetTeacherFeeOverride :one
SELECT fee_percent::text FROM teacher_fee_overrides WHERE teacher_id = $1
`

func (q *Queries) GetTeacherFeeOverride(ctx context.Context, teacherID uuid.UUID) (decimal.Decimal, error) {
	var value string
	if err := q.db.QueryRow(ctx, getTeacherFeeOverride, ToPgUUID(teacherID)).Scan(&value); err != nil {
		return decimal.Zero, err
	}
	return parseNumeric("fee_percent", value)
}

const setTeacherFeeOverride = `-- name: SetTeacherFeeOverride :exec
INSERT INTO teacher_fee_overrides (teacher_id, fee_percent, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (teacher_id) DO UPDATE SET fee_percent = EXCLUDED.fee_percent, updated_at = NOW()
`

func (q *Queries) SetTeacherFeeOverride(ctx context.Context, teacherID uuid.UUID, p decimal.Decimal) error {
	_, err := q.db.Exec(ctx, setTeacherFeeOverride, ToPgUUID(teacherID), numericParam(p))
	return err
}
