package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/menudigital/internal/metrics"
	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/repository"
	"github.com/hitoshi/menudigital/internal/subscription"
)

type fakeGateway struct {
	tx    *Transaction
	err   error
	refs  []string
	ctxOK bool
}

func (g *fakeGateway) LookupTransaction(ctx context.Context, ref string) (*Transaction, error) {
	g.refs = append(g.refs, ref)
	g.ctxOK = ctx.Err() == nil
	if g.err != nil {
		return nil, g.err
	}
	return g.tx, nil
}

type recordingMetrics struct {
	metrics.NopCollector
	reconciliations []string
}

func (m *recordingMetrics) RecordReconciliation(o string) {
	m.reconciliations = append(m.reconciliations, o)
}

type failingFinder struct{}

func (failingFinder) FindByID(context.Context, string) (*model.Tenant, error) {
	return nil, errors.New("connection reset")
}

var (
	registeredAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	paidAt       = registeredAt.Add(8 * 24 * time.Hour)
)

type reconcileFixture struct {
	repo       *repository.MemoryTenantRepo
	gateway    *fakeGateway
	metrics    *recordingMetrics
	reconciler *Reconciler
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		repo:    repository.NewMemoryTenantRepo(),
		gateway: &fakeGateway{},
		metrics: &recordingMetrics{},
	}
	expiresAt := registeredAt.Add(7 * 24 * time.Hour)
	require.NoError(t, f.repo.Create(context.Background(), &model.Tenant{
		ID:                    "tenant-1",
		DisplayName:           "Chez Nous",
		Email:                 "owner@cheznous.test",
		Slug:                  "chez-nous",
		SubscriptionTier:      model.TierFree,
		SubscriptionStatus:    model.StatusExpired,
		SubscriptionExpiresAt: &expiresAt,
	}))
	machine := subscription.NewMachine(f.repo, subscription.MachineConfig{})
	f.reconciler = NewReconciler(f.repo, f.gateway, machine, ReconcilerConfig{
		Now:     func() time.Time { return paidAt },
		Metrics: f.metrics,
	})
	return f
}

func (f *reconcileFixture) stored(t *testing.T) *model.Tenant {
	t.Helper()
	tn, err := f.repo.FindByID(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, tn)
	return tn
}

func requireAPIError(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, code, apiErr.Code)
	return apiErr
}

func TestReconcile_MonthlyActivatesFromReconciliationTime(t *testing.T) {
	f := newReconcileFixture(t)
	f.gateway.tx = &Transaction{Status: StatusSuccess, Amount: 3000, Customer: Customer{Email: "Owner@ChezNous.test"}}

	result, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-1", "monthly")
	require.NoError(t, err)

	assert.Equal(t, model.TierMonthly, result.SubscriptionTier)
	assert.Equal(t, model.StatusActive, result.SubscriptionStatus)
	require.NotNil(t, result.SubscriptionExpiresAt)
	assert.True(t, result.SubscriptionExpiresAt.Equal(paidAt.Add(30*24*time.Hour)))

	stored := f.stored(t)
	assert.Equal(t, model.StatusActive, stored.SubscriptionStatus)
	require.NotNil(t, stored.LastTransactionRef)
	assert.Equal(t, "tx-1", *stored.LastTransactionRef)
	assert.Equal(t, []string{metrics.ReconcileActivated}, f.metrics.reconciliations)
}

func TestReconcile_AnnualWithSufficientAmount(t *testing.T) {
	f := newReconcileFixture(t)
	f.gateway.tx = &Transaction{Status: StatusSuccess, Amount: 30000, Customer: Customer{Email: "owner@cheznous.test"}}

	result, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-annual", "annual")
	require.NoError(t, err)
	assert.True(t, result.SubscriptionExpiresAt.Equal(paidAt.Add(365*24*time.Hour)))
}

// 検証に失敗した場合、購読状態は変更されない。
func TestReconcile_VerificationFailuresLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name string
		tier string
		tx   Transaction
	}{
		{"支払者メール不一致", "monthly", Transaction{Status: StatusSuccess, Amount: 3000, Customer: Customer{Email: "someone@else.test"}}},
		{"金額不足", "monthly", Transaction{Status: StatusSuccess, Amount: 2999, Customer: Customer{Email: "owner@cheznous.test"}}},
		{"月額分で年額を請求", "annual", Transaction{Status: StatusSuccess, Amount: 3000, Customer: Customer{Email: "owner@cheznous.test"}}},
		{"未完了の取引", "monthly", Transaction{Status: "PENDING", Amount: 3000, Customer: Customer{Email: "owner@cheznous.test"}}},
		{"小文字のステータス", "monthly", Transaction{Status: "success", Amount: 3000, Customer: Customer{Email: "owner@cheznous.test"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcileFixture(t)
			before := f.stored(t)
			tx := tt.tx
			f.gateway.tx = &tx

			result, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-bad", tt.tier)
			assert.Nil(t, result)
			requireAPIError(t, err, model.ErrCodeVerificationFailed)

			after := f.stored(t)
			assert.Equal(t, before.SubscriptionStatus, after.SubscriptionStatus)
			assert.Equal(t, before.SubscriptionTier, after.SubscriptionTier)
			assert.True(t, before.SubscriptionExpiresAt.Equal(*after.SubscriptionExpiresAt))
			assert.Nil(t, after.LastTransactionRef)
			assert.Equal(t, []string{metrics.ReconcileVerificationFailed}, f.metrics.reconciliations)
		})
	}
}

func TestReconcile_GatewayFailure(t *testing.T) {
	f := newReconcileFixture(t)
	f.gateway.err = ErrGateway

	_, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-1", "monthly")
	requireAPIError(t, err, model.ErrCodeGatewayError)
	assert.Equal(t, model.StatusExpired, f.stored(t).SubscriptionStatus)
	assert.Equal(t, []string{metrics.ReconcileGatewayError}, f.metrics.reconciliations)
}

// 価格表にないプランはゲートウェイを呼ばずに拒否する。
func TestReconcile_UnknownTier(t *testing.T) {
	for _, tier := range []string{"free", "weekly", ""} {
		t.Run(tier, func(t *testing.T) {
			f := newReconcileFixture(t)
			_, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-1", tier)
			requireAPIError(t, err, model.ErrCodeInvalidRequest)
			assert.Empty(t, f.gateway.refs)
		})
	}
}

func TestReconcile_MissingReference(t *testing.T) {
	f := newReconcileFixture(t)
	_, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "   ", "monthly")
	requireAPIError(t, err, model.ErrCodeInvalidRequest)
	assert.Empty(t, f.gateway.refs)
}

func TestReconcile_UnknownTenant(t *testing.T) {
	f := newReconcileFixture(t)
	_, err := f.reconciler.Reconcile(context.Background(), "ghost", "tx-1", "monthly")
	requireAPIError(t, err, model.ErrCodeNotFound)
	assert.Empty(t, f.gateway.refs)
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	mc := &recordingMetrics{}
	r := NewReconciler(failingFinder{}, &fakeGateway{}, nil, ReconcilerConfig{Metrics: mc})

	_, err := r.Reconcile(context.Background(), "tenant-1", "tx-1", "monthly")
	requireAPIError(t, err, model.ErrCodeServiceUnavailable)
	assert.Equal(t, []string{metrics.ReconcileStoreError}, mc.reconciliations)
}

// 同じ取引参照IDでの再照合はエラーにせず、照合時刻から期限を延長する。
func TestReconcile_SameReferenceReExtends(t *testing.T) {
	f := newReconcileFixture(t)
	f.gateway.tx = &Transaction{Status: StatusSuccess, Amount: 3000, Customer: Customer{Email: "owner@cheznous.test"}}

	_, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-1", "monthly")
	require.NoError(t, err)

	later := paidAt.Add(10 * 24 * time.Hour)
	f.reconciler.now = func() time.Time { return later }
	result, err := f.reconciler.Reconcile(context.Background(), "tenant-1", "tx-1", "monthly")
	require.NoError(t, err)
	assert.True(t, result.SubscriptionExpiresAt.Equal(later.Add(30*24*time.Hour)))
	assert.Equal(t, []string{"tx-1", "tx-1"}, f.gateway.refs)
}

// 呼び出し元のコンテキストがキャンセル済みでも照合と記録は完了する。
func TestReconcile_DetachedFromCallerCancellation(t *testing.T) {
	f := newReconcileFixture(t)
	f.gateway.tx = &Transaction{Status: StatusSuccess, Amount: 3000, Customer: Customer{Email: "owner@cheznous.test"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reconciler.Reconcile(ctx, "tenant-1", "tx-1", "monthly")
	require.NoError(t, err)
	assert.True(t, f.gateway.ctxOK)
	assert.Equal(t, model.StatusActive, f.stored(t).SubscriptionStatus)
}
