package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"crypto-tracker/config"
	"crypto-tracker/database"
	"crypto-tracker/lifecycle"
	"crypto-tracker/models"
	"crypto-tracker/quotes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu      sync.Mutex
	assets  []models.Asset
	trades  []models.Trade
	err     error
	pingErr error
}

func (s *fakeStore) ListAssets(context.Context) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.Asset(nil), s.assets...), nil
}

func (s *fakeStore) CreateAsset(_ context.Context, a *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	a.ID = fmt.Sprintf("asset-%d", len(s.assets)+1)
	s.assets = append(s.assets, *a)
	return nil
}

func (s *fakeStore) CreateAssets(ctx context.Context, assets []models.Asset) error {
	if s.err != nil {
		return s.err
	}
	for i := range assets {
		if err := s.CreateAsset(ctx, &assets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) UpdateAsset(_ context.Context, id string, quantity decimal.Decimal, closed bool) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if closed != quantity.IsZero() {
		return nil, database.ErrInvalidPosition
	}
	for i := range s.assets {
		if s.assets[i].ID == id {
			s.assets[i].Quantity = quantity
			s.assets[i].IsClosed = closed
			a := s.assets[i]
			return &a, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeStore) ListTrades(context.Context) ([]models.Trade, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trades, nil
}

func (s *fakeStore) CreateTrade(_ context.Context, t *models.Trade) error {
	if s.err != nil {
		return s.err
	}
	for _, a := range s.assets {
		if a.ID == t.AssetID {
			t.ID = "trade-1"
			s.trades = append(s.trades, *t)
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

type fakeCloser struct {
	res *lifecycle.Result
	err error
	got lifecycle.CloseRequest
}

func (f *fakeCloser) Close(_ context.Context, req lifecycle.CloseRequest) (*lifecycle.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakeQuotes struct {
	snap    quotes.Snapshot
	err     error
	refresh bool
}

func (f *fakeQuotes) Quotes(_ context.Context, refresh bool) (quotes.Snapshot, error) {
	f.refresh = refresh
	return f.snap, f.err
}

var storeDown = fmt.Errorf("%w: %w", database.ErrStoreUnavailable, errors.New("connection refused"))

func newTestRouter(store *fakeStore, closer *fakeCloser, q *fakeQuotes, auth config.AuthConfig) *gin.Engine {
	if closer == nil {
		closer = &fakeCloser{err: database.ErrNotFound}
	}
	if q == nil {
		q = &fakeQuotes{}
	}
	return NewRouter(Deps{Store: store, Closer: closer, Quotes: q, Auth: auth})
}

func do(r http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func heldAsset(id, symbol, typ string, qty, price int64) models.Asset {
	return models.Asset{
		ID:            id,
		Name:          symbol + " token",
		Symbol:        symbol,
		Type:          typ,
		Quantity:      decimal.NewFromInt(qty),
		PurchasePrice: decimal.NewFromInt(price),
		PurchaseDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHealth(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil, nil, config.AuthConfig{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", nil).Code)

	store.pingErr = errors.New("down")
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/readyz", nil).Code)
}

func TestAssets_CreateAppliesDefaults(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil, nil, config.AuthConfig{})

	w := do(r, http.MethodPost, "/api/assets", gin.H{
		"name": "Ethereum", "symbol": "ETH", "blockchain": "ethereum", "wallet": "ledger",
		"quantity": "1.5", "purchasePrice": 2000, "purchaseDate": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, store.assets, 1)
	got := store.assets[0]
	assert.Equal(t, models.DefaultClassification, got.Classification)
	assert.Equal(t, []string{models.DefaultNarrative}, []string(got.Narrative))
	assert.Equal(t, models.DefaultOrigin, got.Origin)
	assert.Equal(t, models.DefaultType, got.Type)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.PurchaseDate)
}

func TestAssets_CreateRejectsBadInput(t *testing.T) {
	cases := map[string]any{
		"malformed json":   "{",
		"missing name":     gin.H{"symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": 1, "purchasePrice": 1, "purchaseDate": "2024-01-01"},
		"missing quantity": gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "purchasePrice": 1, "purchaseDate": "2024-01-01"},
		"negative price":   gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": 1, "purchasePrice": -1, "purchaseDate": "2024-01-01"},
		"bad date":         gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": 1, "purchasePrice": 1, "purchaseDate": "yesterday"},
		"quantity scale":   gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": "0.99999999999", "purchasePrice": 1, "purchaseDate": "2024-01-01"},
		"price scale":      gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": 1, "purchasePrice": "0.00000000001", "purchaseDate": "2024-01-01"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			w := do(newTestRouter(store, nil, nil, config.AuthConfig{}), http.MethodPost, "/api/assets", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.assets)
		})
	}
}

func TestAssets_StoreFailure(t *testing.T) {
	r := newTestRouter(&fakeStore{err: storeDown}, nil, nil, config.AuthConfig{})

	w := do(r, http.MethodGet, "/api/assets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Database connection failed. Please ensure your database is properly configured.", decode(t, w)["error"])

	w = do(r, http.MethodPost, "/api/assets", gin.H{
		"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w",
		"quantity": 1, "purchasePrice": 1, "purchaseDate": "2024-01-01",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Failed to create asset. Check input data.", decode(t, w)["error"])
}

func TestAssets_Batch(t *testing.T) {
	store := &fakeStore{}
	r := newTestRouter(store, nil, nil, config.AuthConfig{})
	item := gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": 1, "purchasePrice": 1, "purchaseDate": "2024-01-01T10:00:00Z"}

	w := do(r, http.MethodPost, "/api/assets/batch", gin.H{"assets": []gin.H{item, item}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["created"])

	bad := gin.H{"name": "E", "symbol": "ETH", "blockchain": "e", "wallet": "w", "quantity": -1, "purchasePrice": 1, "purchaseDate": "2024-01-01"}
	w = do(r, http.MethodPost, "/api/assets/batch", gin.H{"assets": []gin.H{item, bad}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.assets, 2)
}

func TestAssets_UpdateQuantity(t *testing.T) {
	store := &fakeStore{assets: []models.Asset{heldAsset("a1", "ETH", models.TypeSwing, 5, 100)}}
	r := newTestRouter(store, nil, nil, config.AuthConfig{})

	w := do(r, http.MethodPut, "/api/assets/a1", gin.H{"quantity": "2.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, store.assets[0].Quantity.Equal(decimal.RequireFromString("2.5")))
	assert.False(t, store.assets[0].IsClosed)

	w = do(r, http.MethodPut, "/api/assets/a1", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.assets[0].IsClosed)

	for _, body := range []gin.H{{"quantity": -1}, {"quantity": "0.00000000001"}, {}} {
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/assets/a1", body).Code)
	}
	assert.True(t, store.assets[0].Quantity.IsZero())
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/api/assets/missing", gin.H{"quantity": 1}).Code)
}

func TestClose_Success(t *testing.T) {
	pl := decimal.NewFromInt(200)
	closer := &fakeCloser{res: &lifecycle.Result{
		Trade: &models.Trade{ID: "t1", AssetID: "a1", Status: models.TradeStatusOpen, PL: &pl},
		Asset: &models.Asset{ID: "a1", Quantity: decimal.NewFromInt(6)},
	}}
	r := newTestRouter(&fakeStore{}, closer, nil, config.AuthConfig{})

	w := do(r, http.MethodPost, "/api/close", `{"id":"a1","quantity":4,"sell_price":"150"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Position closed successfully", body["message"])
	assert.Equal(t, "t1", body["trade"].(map[string]any)["id"])
	assert.Equal(t, "a1", closer.got.ID)
	assert.True(t, closer.got.Quantity.Equal(decimal.NewFromInt(4)))
	assert.True(t, closer.got.SellPrice.Equal(decimal.NewFromInt(150)))
}

func TestClose_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &lifecycle.ValidationError{Message: "All fields are required"}, http.StatusBadRequest, "All fields are required"},
		{"not found", database.ErrNotFound, http.StatusNotFound, "Asset not found"},
		{"insufficient", database.ErrInsufficientQuantity, http.StatusBadRequest, "Insufficient quantity"},
		{"store", storeDown, http.StatusInternalServerError, "Failed to close position"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&fakeStore{}, &fakeCloser{err: tc.err}, nil, config.AuthConfig{})
			w := do(r, http.MethodPost, "/api/close", `{"id":"a1","quantity":1,"sell_price":1}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.msg, decode(t, w)["error"])
		})
	}
}

func TestClose_MalformedBody(t *testing.T) {
	closer := &fakeCloser{err: database.ErrNotFound}
	w := do(newTestRouter(&fakeStore{}, closer, nil, config.AuthConfig{}), http.MethodPost, "/api/close", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, closer.got.ID)
}

func TestTrades_CreateComputesPL(t *testing.T) {
	store := &fakeStore{assets: []models.Asset{heldAsset("a1", "BTC", models.TypeTrade, 1, 1)}}
	r := newTestRouter(store, nil, nil, config.AuthConfig{})

	w := do(r, http.MethodPost, "/api/trades", gin.H{
		"asset_id": "a1", "type": "trade", "leverage": 2, "quantity": 3,
		"entry_price": 100, "exit_price": 110, "entry_date": "2024-02-01", "status": "closed",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, store.trades, 1)
	assert.True(t, store.trades[0].PL.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, models.TradeStatusClosed, store.trades[0].Status)

	w = do(r, http.MethodPost, "/api/trades", gin.H{
		"asset_id": "missing", "type": "trade", "quantity": 1, "entry_price": 1, "entry_date": "2024-02-01",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/trades", gin.H{
		"asset_id": "a1", "type": "trade", "quantity": 1, "entry_price": 1, "entry_date": "2024-02-01", "status": "pending",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrades_CreateRejectsAmountsBeyondStoredScale(t *testing.T) {
	cases := map[string]gin.H{
		"quantity":    {"asset_id": "a1", "type": "trade", "quantity": "1.00000000001", "entry_price": 1, "entry_date": "2024-02-01"},
		"entry price": {"asset_id": "a1", "type": "trade", "quantity": 1, "entry_price": "1.00000000001", "entry_date": "2024-02-01"},
		"exit price":  {"asset_id": "a1", "type": "trade", "quantity": 1, "entry_price": 1, "exit_price": "2.00000000001", "entry_date": "2024-02-01"},
		"leverage":    {"asset_id": "a1", "type": "trade", "leverage": "1.555", "quantity": 1, "entry_price": 1, "entry_date": "2024-02-01"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{assets: []models.Asset{heldAsset("a1", "BTC", models.TypeTrade, 1, 1)}}
			w := do(newTestRouter(store, nil, nil, config.AuthConfig{}), http.MethodPost, "/api/trades", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.trades)
		})
	}
}

func TestTrades_ListFailure(t *testing.T) {
	w := do(newTestRouter(&fakeStore{err: storeDown}, nil, nil, config.AuthConfig{}), http.MethodGet, "/api/trades", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Failed to fetch trades.", decode(t, w)["error"])
}

func TestPrices(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuotes{snap: quotes.Snapshot{
		Quotes:    map[string]models.Quote{"BTC": {Symbol: "BTC", Price: decimal.NewFromInt(60000)}},
		UpdatedAt: at,
	}}
	r := newTestRouter(&fakeStore{}, nil, q, config.AuthConfig{})

	w := do(r, http.MethodGet, "/api/prices?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, q.refresh)
	body := decode(t, w)
	assert.Contains(t, body["data"], "BTC")
	assert.Equal(t, at.Format(time.RFC3339), body["updated_at"])

	q.err = quotes.ErrProviderFailure
	w = do(r, http.MethodGet, "/api/prices", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch current prices", decode(t, w)["error"])
}

func TestPrices_EmptySnapshotIsEmptyObject(t *testing.T) {
	w := do(newTestRouter(&fakeStore{}, nil, nil, config.AuthConfig{}), http.MethodGet, "/api/prices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{}, decode(t, w)["data"])
}

func TestPortfolio_View(t *testing.T) {
	closed := heldAsset("a3", "SOL", models.TypeSwing, 0, 10)
	closed.IsClosed = true
	store := &fakeStore{assets: []models.Asset{
		heldAsset("a1", "ETH", models.TypeSwing, 2, 1000),
		heldAsset("a2", "ARB", models.TypeAirdrop, 100, 0),
		closed,
	}}
	q := &fakeQuotes{snap: quotes.Snapshot{
		Quotes:    map[string]models.Quote{"ETH": {Symbol: "ETH", Price: decimal.NewFromInt(1500)}},
		UpdatedAt: time.Now(),
	}}
	r := newTestRouter(store, nil, q, config.AuthConfig{})

	w := do(r, http.MethodGet, "/api/portfolio/swing", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "swing", body["view"])
	assert.Len(t, body["positions"], 1)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "3000", summary["totalValue"])
	assert.Equal(t, "1000", summary["totalProfitLoss"])

	w = do(r, http.MethodGet, "/api/portfolio/swing?include_closed=true", nil)
	assert.Len(t, decode(t, w)["positions"], 2)

	w = do(r, http.MethodGet, "/api/portfolio/global/bubbles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 2)
}

func TestPortfolio_Errors(t *testing.T) {
	r := newTestRouter(&fakeStore{}, nil, nil, config.AuthConfig{})
	w := do(r, http.MethodGet, "/api/portfolio/moon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "stablecoin")

	r = newTestRouter(&fakeStore{err: storeDown}, nil, nil, config.AuthConfig{})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/portfolio/global", nil).Code)
}

func TestPortfolio_QuoteFailureDegrades(t *testing.T) {
	store := &fakeStore{assets: []models.Asset{heldAsset("a1", "ETH", models.TypeSwing, 2, 1000)}}
	r := newTestRouter(store, nil, &fakeQuotes{err: quotes.ErrProviderFailure}, config.AuthConfig{})

	w := do(r, http.MethodGet, "/api/portfolio/global", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to fetch current prices", body["quotes_error"])
	assert.Nil(t, body["quotes_updated_at"])
	assert.Equal(t, "2000", body["summary"].(map[string]any)["totalValue"])
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := config.AuthConfig{JWTSecret: "secret", PasswordHash: string(hash), TokenTTL: time.Hour}
	r := newTestRouter(&fakeStore{}, nil, nil, auth)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/login", gin.H{"password": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/login", gin.H{}).Code)

	w := do(r, http.MethodPost, "/login", gin.H{"password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["access_token"].(string)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, OwnerSubject, sub)

	// writes need the token once a secret is configured
	body := `{"id":"a1","quantity":1,"sell_price":1}`
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/close", body).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/close", body, "Authorization", "Bearer "+token).Code)
}

func TestLogin_NotConfigured(t *testing.T) {
	r := newTestRouter(&fakeStore{}, nil, nil, config.AuthConfig{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/login", gin.H{"password": "x"}).Code)
}
