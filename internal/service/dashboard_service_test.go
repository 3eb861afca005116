package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"tradeconsole/internal/models"
	"tradeconsole/internal/querycache"
	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

func newTestDashboard(r *MockAccountRemote) *DashboardService {
	return NewDashboardService(r, querycache.New(time.Minute), utils.NewNopLogger())
}

func TestDashboardService_Load_Defaults(t *testing.T) {
	r := &MockAccountRemote{
		keyInfo:  models.Payload{"ok": true, "info": map[string]interface{}{"readOnly": 0}},
		balances: models.Payload{"ok": true, "accountType": "UNIFIED"},
		orders:   []models.Order{{"orderId": "1"}},
	}
	svc := newTestDashboard(r)

	view, err := svc.Load(context.Background(), models.DashboardQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Query.AccountType != models.DefaultAccountType || view.Query.Symbol != models.DefaultSymbol || view.Query.Category != models.DefaultCategory {
		t.Errorf("expected default query, got %+v", view.Query)
	}
	if r.accountType != "UNIFIED" || r.symbol != "BTCUSDT" || r.category != "linear" {
		t.Errorf("remote called with %s/%s/%s", r.accountType, r.symbol, r.category)
	}
	for name, q := range map[string]models.QueryView{"keyInfo": view.KeyInfo, "balances": view.Balances, "orders": view.OpenOrders} {
		if q.Error != "" || q.Loading || q.Data == nil {
			t.Errorf("%s: expected data without error, got %+v", name, q)
		}
	}
}

func TestDashboardService_Load_IndependentErrors(t *testing.T) {
	r := &MockAccountRemote{
		keyInfo:     models.Payload{"ok": true},
		balancesErr: &remote.RemoteError{Op: remote.OpBalances, Status: http.StatusBadRequest, Body: `{"ok":false,"error":"no credentials"}`},
		ordersErr:   &remote.RemoteError{Op: remote.OpOpenOrders, Err: errors.New("connection reset")},
	}
	svc := newTestDashboard(r)

	view, err := svc.Load(context.Background(), models.DashboardQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.KeyInfo.Error != "" || view.KeyInfo.Data == nil {
		t.Errorf("key info must succeed, got %+v", view.KeyInfo)
	}
	if view.Balances.Error != "no credentials" {
		t.Errorf("expected balances error 'no credentials', got %q", view.Balances.Error)
	}
	if view.OpenOrders.Error != "request failed" {
		t.Errorf("expected orders error 'request failed', got %q", view.OpenOrders.Error)
	}
}

func TestDashboardService_Load_StaleSession(t *testing.T) {
	stale := &remote.StaleSessionError{Remote: &remote.RemoteError{Op: remote.OpKeyInfo, Status: http.StatusUnauthorized}}
	r := &MockAccountRemote{keyInfoErr: stale}
	svc := newTestDashboard(r)

	view, _ := svc.Load(context.Background(), models.DashboardQuery{})
	if view.KeyInfo.Error != MsgSessionRejected {
		t.Errorf("expected %q, got %q", MsgSessionRejected, view.KeyInfo.Error)
	}
}

func TestDashboardService_Load_UsesCache(t *testing.T) {
	r := &MockAccountRemote{keyInfo: models.Payload{}, balances: models.Payload{}}
	svc := newTestDashboard(r)

	for i := 0; i < 3; i++ {
		if _, err := svc.Load(context.Background(), models.DashboardQuery{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := r.keyInfoCalls.Load(); got != 1 {
		t.Errorf("expected 1 key info call, got %d", got)
	}
	if got := r.balancesCalls.Load(); got != 1 {
		t.Errorf("expected 1 balances call, got %d", got)
	}

	// Другой тип аккаунта - другой ключ
	if _, err := svc.Load(context.Background(), models.DashboardQuery{AccountType: "SPOT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.balancesCalls.Load(); got != 2 {
		t.Errorf("expected 2 balances calls, got %d", got)
	}
	if got := r.keyInfoCalls.Load(); got != 1 {
		t.Errorf("key info must stay cached, got %d calls", got)
	}
}

func TestDashboardService_Load_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query models.DashboardQuery
	}{
		{"unknown account type", models.DashboardQuery{AccountType: "MARGIN"}},
		{"unknown category", models.DashboardQuery{Category: "options"}},
		{"bad symbol", models.DashboardQuery{Symbol: "BTC USDT;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MockAccountRemote{}
			svc := newTestDashboard(r)

			_, err := svc.Load(context.Background(), tt.query)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
			if r.keyInfoCalls.Load() != 0 {
				t.Error("remote must not be called for an invalid query")
			}
		})
	}
}

func TestDashboardService_Status(t *testing.T) {
	r := &MockAccountRemote{keyInfo: models.Payload{"ok": true}}
	svc := newTestDashboard(r)

	view, err := svc.Status(models.DashboardQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.KeyInfo.Data != nil || view.KeyInfo.Loading {
		t.Errorf("expected idle key info before load, got %+v", view.KeyInfo)
	}

	if _, err := svc.Load(context.Background(), models.DashboardQuery{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, _ = svc.Status(models.DashboardQuery{})
	if view.KeyInfo.Data == nil {
		t.Error("expected cached key info after load")
	}
	if r.keyInfoCalls.Load() != 1 {
		t.Errorf("Status must not fetch, got %d calls", r.keyInfoCalls.Load())
	}
}

func TestKeys(t *testing.T) {
	k, b, o := Keys(models.DashboardQuery{AccountType: "SPOT", Symbol: "ETHUSDT", Category: "spot"})
	if k != "keyinfo" || b != "balances/SPOT" || o != "orders/spot/ETHUSDT" {
		t.Errorf("unexpected keys %s %s %s", k, b, o)
	}
}

func TestNormalizeQuery_Case(t *testing.T) {
	q, err := NormalizeQuery(models.DashboardQuery{AccountType: "spot", Category: "Inverse", Symbol: "BTCUSD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.AccountType != "SPOT" || q.Category != "inverse" {
		t.Errorf("expected SPOT/inverse, got %s/%s", q.AccountType, q.Category)
	}
}
