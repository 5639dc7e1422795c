package quotes

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"crypto-tracker/metrics"
	"crypto-tracker/models"
)

// SymbolSource lists the symbols that need quotes.
type SymbolSource interface {
	ListOpenSymbols(ctx context.Context) ([]string, error)
}

// Provider fetches quotes for a batch of symbols.
type Provider interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
}

// Service keeps the quote cache filled for the symbols currently held.
type Service struct {
	Symbols  SymbolSource
	Provider Provider
	Cache    Cache
	Logger   *zap.Logger
	Now      func() time.Time

	// serializes refreshes so two callers never race on Replace
	mu sync.Mutex
	// symbols sent to the provider by the last successful refresh
	requested map[string]struct{}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Refresh fetches quotes for every open symbol and replaces the cache. On
// failure the previous snapshot is left untouched.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols, err := s.Symbols.ListOpenSymbols(ctx)
	if err != nil {
		s.logger().Error("list symbols for quote refresh failed", zap.Error(err))
		return Snapshot{}, err
	}

	quotes, err := s.Provider.GetQuotes(ctx, symbols)
	if err != nil {
		metrics.QuoteFetches.WithLabelValues("error").Inc()
		s.logger().Error("quote refresh failed", zap.Int("symbols", len(symbols)), zap.Error(err))
		return Snapshot{}, err
	}
	metrics.QuoteFetches.WithLabelValues("success").Inc()

	at := s.now()
	if err := s.Cache.Replace(ctx, quotes, at); err != nil {
		s.logger().Error("quote cache replace failed", zap.Error(err))
		return Snapshot{}, err
	}
	s.requested = make(map[string]struct{}, len(symbols))
	for _, sym := range NormalizeSymbols(symbols) {
		s.requested[sym] = struct{}{}
	}
	metrics.QuoteSymbols.Set(float64(len(quotes)))
	s.logger().Debug("quotes refreshed", zap.Int("symbols", len(symbols)), zap.Int("quotes", len(quotes)))

	return Snapshot{Quotes: quotes, UpdatedAt: at}, nil
}

// Quotes returns the cached snapshot, refreshing first when forced, when the
// cache has never been filled, or when a held symbol has not been asked of
// the provider yet (a position created since the last refresh).
func (s *Service) Quotes(ctx context.Context, refresh bool) (Snapshot, error) {
	if !refresh {
		snap, err := s.Cache.Snapshot(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if !snap.UpdatedAt.IsZero() && !s.hasUnrequested(ctx, snap) {
			return snap, nil
		}
	}
	return s.Refresh(ctx)
}

// hasUnrequested reports whether an open symbol is missing from snap and was
// not part of the last refresh. Symbols the provider does not know are
// therefore retried only by the scheduled refresh.
func (s *Service) hasUnrequested(ctx context.Context, snap Snapshot) bool {
	symbols, err := s.Symbols.ListOpenSymbols(ctx)
	if err != nil {
		s.logger().Warn("list symbols for quote lookup failed", zap.Error(err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range NormalizeSymbols(symbols) {
		if _, ok := snap.Quotes[sym]; ok {
			continue
		}
		if _, ok := s.requested[sym]; !ok {
			return true
		}
	}
	return false
}
