package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	ledgerdomain "options_backend/internal/feature/ledger/domain"
	"options_backend/internal/feature/trading/domain"
	"options_backend/internal/feature/trading/domain/entity"
	"options_backend/internal/feature/trading/transport/handler"
	jwtmw "options_backend/internal/platform/jwt"
)

// mockTrading はTradingUsecaseインターフェースのモック実装です。
type mockTrading struct {
	OpenFunc    func(ctx context.Context, accountID, symbol string, direction entity.Direction, stake float64, duration time.Duration) (entity.Contract, error)
	ResolveFunc func(ctx context.Context, id string) (entity.Contract, error)
	GetFunc     func(ctx context.Context, id string) (entity.Contract, error)
	ActiveFunc  func(accountID string) []entity.Contract
	HistoryFunc func(accountID string) []entity.Contract
}

func (m *mockTrading) Open(ctx context.Context, accountID, symbol string, direction entity.Direction, stake float64, duration time.Duration) (entity.Contract, error) {
	return m.OpenFunc(ctx, accountID, symbol, direction, stake, duration)
}

func (m *mockTrading) Resolve(ctx context.Context, id string) (entity.Contract, error) {
	return m.ResolveFunc(ctx, id)
}

func (m *mockTrading) Get(ctx context.Context, id string) (entity.Contract, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockTrading) Active(accountID string) []entity.Contract { return m.ActiveFunc(accountID) }

func (m *mockTrading) History(accountID string) []entity.Contract { return m.HistoryFunc(accountID) }

var opened = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func contract(id, account string) entity.Contract {
	return entity.Contract{
		ID:         id,
		AccountID:  account,
		Symbol:     "EUR/USD",
		Direction:  entity.DirectionUp,
		Stake:      10,
		EntryPrice: 1.085,
		OpenedAt:   opened,
		ExpiresAt:  opened.Add(30 * time.Second),
		Duration:   30 * time.Second,
		PayoutRate: 0.78,
		State:      entity.StateActive,
	}
}

func resolved(c entity.Contract) entity.Contract {
	c.State = entity.StateResolved
	c.ExitPrice = 1.086
	c.Outcome = entity.OutcomeWon
	c.Payout = 7.8
	c.ResolvedAt = c.ExpiresAt
	return c
}

const activeJSON = `{"id":"c-1","symbol":"EUR/USD","direction":"up","stake":10,"entry_price":1.085,"payout_rate":0.78,` +
	`"opened_at":"2025-01-15T10:00:00Z","expires_at":"2025-01-15T10:00:30Z","state":"active"}`

const resolvedJSON = `{"id":"c-1","symbol":"EUR/USD","direction":"up","stake":10,"entry_price":1.085,"payout_rate":0.78,` +
	`"opened_at":"2025-01-15T10:00:00Z","expires_at":"2025-01-15T10:00:30Z","state":"resolved",` +
	`"exit_price":1.086,"outcome":"won","payout":7.8,"resolved_at":"2025-01-15T10:00:30Z"}`

func newRouter(m *mockTrading) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewTradingHandler(m)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(jwtmw.ContextAccountID, "acc-1") })
	r.POST("/trades", h.OpenTrade)
	r.GET("/trades", h.ListTrades)
	r.GET("/trades/:id", h.GetTrade)
	r.POST("/trades/:id/resolve", h.ResolveTrade)
	return r
}

func TestTradingHandler_OpenTrade(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "success",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10,"duration_sec":30}`,
			expectedStatus: http.StatusCreated,
			expectedBody:   activeJSON,
		},
		{
			name:           "failure: malformed body",
			body:           `{"symbol":`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
		{
			name:           "failure: missing duration",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
		{
			name:           "failure: duration overflows",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10,"duration_sec":9223372036}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
		{
			name:           "failure: duration longer than a day",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10,"duration_sec":86401}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid request"}`,
		},
		{
			name:           "failure: unknown symbol",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10,"duration_sec":30}`,
			err:            fmt.Errorf("%w: unknown symbol %s", domain.ErrInvalidContract, "EUR/USD"),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid contract: unknown symbol EUR/USD"}`,
		},
		{
			name:           "failure: invalid stake",
			body:           `{"symbol":"EURUSD","direction":"up","stake":0.1,"duration_sec":30}`,
			err:            domain.ErrInvalidStake,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid stake"}`,
		},
		{
			name:           "failure: invalid direction",
			body:           `{"symbol":"EURUSD","direction":"left","stake":10,"duration_sec":30}`,
			err:            fmt.Errorf("%w: direction %q", domain.ErrInvalidContract, "left"),
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid contract: direction \"left\""}`,
		},
		{
			name:           "failure: insufficient balance",
			body:           `{"symbol":"EURUSD","direction":"down","stake":150,"duration_sec":30}`,
			err:            domain.ErrInsufficientBalance,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"insufficient balance"}`,
		},
		{
			name:           "failure: unauthenticated",
			body:           `{"symbol":"EURUSD","direction":"up","stake":10,"duration_sec":30}`,
			err:            ledgerdomain.ErrUnauthenticated,
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"unauthenticated"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockTrading{OpenFunc: func(_ context.Context, accountID, symbol string, direction entity.Direction, stake float64, duration time.Duration) (entity.Contract, error) {
				assert.Equal(t, "acc-1", accountID)
				assert.Equal(t, "EURUSD", symbol)
				assert.Equal(t, 30*time.Second, duration)
				if tt.err != nil {
					return entity.Contract{}, tt.err
				}
				assert.Equal(t, entity.DirectionUp, direction)
				assert.Equal(t, 10.0, stake)
				return contract("c-1", accountID), nil
			}})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestTradingHandler_ListTrades(t *testing.T) {
	r := newRouter(&mockTrading{
		ActiveFunc: func(accountID string) []entity.Contract {
			assert.Equal(t, "acc-1", accountID)
			return nil
		},
		HistoryFunc: func(string) []entity.Contract {
			return []entity.Contract{resolved(contract("c-1", "acc-1"))}
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trades", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":[],"history":[`+resolvedJSON+`]}`, w.Body.String())
}

func TestTradingHandler_GetTrade(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		expectedStatus int
		expectedBody   string
	}{
		{"success: own contract", "c-1", http.StatusOK, activeJSON},
		{"failure: other account", "c-2", http.StatusNotFound, `{"error":"contract not found"}`},
		{"failure: unknown", "c-9", http.StatusNotFound, `{"error":"contract not found"}`},
	}

	m := &mockTrading{GetFunc: func(_ context.Context, id string) (entity.Contract, error) {
		switch id {
		case "c-1":
			return contract("c-1", "acc-1"), nil
		case "c-2":
			return contract("c-2", "acc-2"), nil
		}
		return entity.Contract{}, domain.ErrContractNotFound
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trades/"+tt.id, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestTradingHandler_ResolveTrade(t *testing.T) {
	tests := []struct {
		name           string
		resolveErr     error
		expectedStatus int
		expectedBody   string
	}{
		{"success", nil, http.StatusOK, resolvedJSON},
		{"failure: not expired", domain.ErrNotExpired, http.StatusConflict, `{"error":"contract has not expired"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&mockTrading{
				GetFunc: func(_ context.Context, id string) (entity.Contract, error) { return contract(id, "acc-1"), nil },
				ResolveFunc: func(_ context.Context, id string) (entity.Contract, error) {
					if tt.resolveErr != nil {
						return entity.Contract{}, tt.resolveErr
					}
					return resolved(contract(id, "acc-1")), nil
				},
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trades/c-1/resolve", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}
