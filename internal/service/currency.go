package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayo6706/tutor-settlement/internal/cache"
	"github.com/ayo6706/tutor-settlement/internal/domain"
	"github.com/ayo6706/tutor-settlement/internal/models"
	"github.com/ayo6706/tutor-settlement/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotCache is the optional shared second-level cache for the table.
type SnapshotCache interface {
	Get(ctx context.Context) (models.CurrencySnapshot, error)
	Set(ctx context.Context, snap models.CurrencySnapshot) error
	Invalidate(ctx context.Context) error
}

type loadedTable struct {
	table    *domain.CurrencyTable
	loadedAt time.Time
}

// CurrencyService serves immutable currency tables and administers the rows
// behind them. Readers never block on a refresh once a table is loaded.
type CurrencyService struct {
	store      QueryStore
	shared     SnapshotCache
	reference  string
	defaultFee decimal.Decimal
	ttl        time.Duration
	audit      *AuditService
	now        func() time.Time

	refreshMu sync.Mutex
	current   atomic.Pointer[loadedTable]
	// generation is bumped by Invalidate; a refresh that started under an
	// older generation is not cached.
	generation atomic.Uint64
}

// CurrencyOptions carries the configuration fallbacks.
type CurrencyOptions struct {
	ReferenceCurrency string
	DefaultFeePercent decimal.Decimal
	TTL               time.Duration
}

func NewCurrencyService(store QueryStore, shared SnapshotCache, opts CurrencyOptions) *CurrencyService {
	ref := domain.NormalizeCode(opts.ReferenceCurrency)
	if ref == "" {
		ref = domain.DefaultReferenceCurrency
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CurrencyService{
		store:      store,
		shared:     shared,
		reference:  ref,
		defaultFee: opts.DefaultFeePercent,
		ttl:        ttl,
		audit:      NewAuditService(),
		now:        time.Now,
	}
}

func (s *CurrencyService) Reference() string {
	return s.reference
}

// Table returns the current snapshot, reloading it once the TTL has passed.
func (s *CurrencyService) Table(ctx context.Context) (*domain.CurrencyTable, error) {
	if cur := s.current.Load(); cur != nil && s.now().Sub(cur.loadedAt) < s.ttl {
		return cur.table, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if cur := s.current.Load(); cur != nil && s.now().Sub(cur.loadedAt) < s.ttl {
		return cur.table, nil
	}

	gen := s.generation.Load()
	snap, fromShared := s.sharedSnapshot(ctx)
	if !fromShared {
		var err error
		if snap, err = s.loadSnapshot(ctx); err != nil {
			if cur := s.current.Load(); cur != nil {
				zap.L().Warn("currency table refresh failed, serving previous snapshot", zap.Error(err))
				return cur.table, nil
			}
			return nil, err
		}
	}

	table, err := domain.NewCurrencyTable(s.reference, snap)
	if err != nil {
		return nil, fmt.Errorf("build currency table: %w", err)
	}
	if s.generation.Load() != gen {
		zap.L().Debug("currency table invalidated during refresh, not caching")
		return table, nil
	}
	if !fromShared && s.shared != nil {
		if err := s.shared.Set(ctx, table.Snapshot()); err != nil {
			zap.L().Warn("currency snapshot cache write failed", zap.Error(err))
		}
	}
	s.current.Store(&loadedTable{table: table, loadedAt: s.now()})
	return table, nil
}

func (s *CurrencyService) sharedSnapshot(ctx context.Context) (models.CurrencySnapshot, bool) {
	if s.shared == nil {
		return models.CurrencySnapshot{}, false
	}
	snap, err := s.shared.Get(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			zap.L().Warn("currency snapshot cache read failed", zap.Error(err))
		}
		return models.CurrencySnapshot{}, false
	}
	return snap, true
}

func (s *CurrencyService) loadSnapshot(ctx context.Context) (models.CurrencySnapshot, error) {
	q := s.store.Queries()
	rates, err := q.ListCurrencyRates(ctx)
	if err != nil {
		return models.CurrencySnapshot{}, fmt.Errorf("list currency rates: %w", err)
	}
	countries, err := q.ListCountryCurrencies(ctx)
	if err != nil {
		return models.CurrencySnapshot{}, fmt.Errorf("list country currencies: %w", err)
	}
	fee, err := q.GetDefaultFeePercent(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		fee, err = s.defaultFee, nil
	}
	if err != nil {
		return models.CurrencySnapshot{}, fmt.Errorf("get default fee: %w", err)
	}
	return models.CurrencySnapshot{Rates: rates, CountryCurrency: countries, DefaultFeePercent: fee}, nil
}

// Invalidate drops both cache levels so the next read reloads from the store.
func (s *CurrencyService) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	s.current.Store(nil)
	if s.shared != nil {
		if err := s.shared.Invalidate(ctx); err != nil {
			zap.L().Warn("currency snapshot cache invalidation failed", zap.Error(err))
		}
	}
}

func (s *CurrencyService) Snapshot(ctx context.Context) (models.CurrencySnapshot, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return models.CurrencySnapshot{}, err
	}
	return table.Snapshot(), nil
}

// TeacherFeePercent resolves the teacher override, falling back to the table default.
func (s *CurrencyService) TeacherFeePercent(ctx context.Context, q repository.Querier, teacherID uuid.UUID, table *domain.CurrencyTable) (decimal.Decimal, error) {
	var override *decimal.Decimal
	p, err := q.GetTeacherFeeOverride(ctx, teacherID)
	switch {
	case err == nil:
		override = &p
	case !errors.Is(err, pgx.ErrNoRows):
		return decimal.Zero, fmt.Errorf("get fee override for teacher %s: %w", teacherID, err)
	}
	return domain.ResolveFeePercent(override, table)
}

// UpsertRate stores a currency rate. A single supplied rate fills both sides.
func (s *CurrencyService) UpsertRate(ctx context.Context, p models.Principal, r models.CurrencyRate) (models.CurrencyRate, error) {
	if err := requireAdmin(p); err != nil {
		return models.CurrencyRate{}, err
	}
	norm, err := domain.NormalizeRate(r)
	if err != nil {
		return models.CurrencyRate{}, err
	}
	norm.UpdatedAt = s.now().UTC()
	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.UpsertCurrencyRate(ctx, norm); err != nil {
			return fmt.Errorf("upsert rate %s: %w", norm.Code, err)
		}
		return s.audit.Write(ctx, q, entityCurrency, uuid.Nil, actorOf(p), "rate_updated", "", "", norm)
	})
	if err != nil {
		return models.CurrencyRate{}, err
	}
	s.Invalidate(ctx)
	zap.L().Info("currency rate updated", zap.String("code", norm.Code), zap.String("buy", norm.BuyRate.String()), zap.String("sell", norm.SellRate.String()))
	return norm, nil
}

func (s *CurrencyService) UpsertCountry(ctx context.Context, p models.Principal, m models.CountryCurrency) (models.CountryCurrency, error) {
	if err := requireAdmin(p); err != nil {
		return models.CountryCurrency{}, err
	}
	m.CountryCode = domain.NormalizeCode(m.CountryCode)
	m.CurrencyCode = domain.NormalizeCode(m.CurrencyCode)
	if m.CountryCode == "" || m.CurrencyCode == "" {
		return models.CountryCurrency{}, fmt.Errorf("%w: country and currency codes are required", models.ErrInvalidRequest)
	}
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.UpsertCountryCurrency(ctx, m); err != nil {
			return fmt.Errorf("upsert country %s: %w", m.CountryCode, err)
		}
		return s.audit.Write(ctx, q, entityCurrency, uuid.Nil, actorOf(p), "country_mapped", "", "", m)
	})
	if err != nil {
		return models.CountryCurrency{}, err
	}
	s.Invalidate(ctx)
	return m, nil
}

func (s *CurrencyService) SetDefaultFee(ctx context.Context, p models.Principal, pct decimal.Decimal) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if err := domain.ValidateFeePercent(pct); err != nil {
		return err
	}
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.SetDefaultFeePercent(ctx, pct); err != nil {
			return fmt.Errorf("set default fee: %w", err)
		}
		return s.audit.Write(ctx, q, entityCurrency, uuid.Nil, actorOf(p), "default_fee_updated", "", pct.String(), nil)
	})
	if err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

// SetTeacherFeeOverride only affects sessions accepted afterwards; accepted
// sessions keep the percent they were priced with.
func (s *CurrencyService) SetTeacherFeeOverride(ctx context.Context, p models.Principal, teacherID uuid.UUID, pct decimal.Decimal) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if err := domain.ValidateFeePercent(pct); err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(q repository.Querier) error {
		if err := q.SetTeacherFeeOverride(ctx, teacherID, pct); err != nil {
			return fmt.Errorf("set fee override for teacher %s: %w", teacherID, err)
		}
		return s.audit.Write(ctx, q, entityCurrency, teacherID, actorOf(p), "teacher_fee_override", "", pct.String(), nil)
	})
}
