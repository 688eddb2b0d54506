package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/menudigital/internal/payment"
)

// PaymentReconcilerInterface は決済ハンドラーが必要とする照合インターフェース。
type PaymentReconcilerInterface interface {
	Reconcile(ctx context.Context, tenantID, transactionRef, claimedTier string) (*payment.ActivationResult, error)
}

// verifyPaymentRequest は決済検証リクエストのボディ。
type verifyPaymentRequest struct {
	TransactionID string `json:"transactionId"`
	PlanKey       string `json:"planKey"`
}

// PaymentHandler は決済検証のHTTPハンドラー。
type PaymentHandler struct {
	reconciler PaymentReconcilerInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(reconciler PaymentReconcilerInterface) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler}
}

// Verify は決済ゲートウェイの取引を照合し、購読を有効化する。
// POST /api/payments/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenantID(w, r)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), tenantID, strings.TrimSpace(req.TransactionID), req.PlanKey)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
