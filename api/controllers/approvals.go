package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/api/responses"
	"github.com/bunai-labs/bunai-backend/internal/approval"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type approveOrderResponse struct {
	OrderID       string        `json:"order_id"`
	WorkflowState string        `json:"workflow_state"`
	Invoice       *invoiceDTO   `json:"invoice,omitempty"`
	Lines         []lineItemDTO `json:"lines,omitempty"`
}

// ApproveOrder commits a pending order: inventory deduction, line items,
// invoice, credit entry, and session close, all in one transaction.
func ApproveOrder(svc approval.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "approval service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Approve(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := approveOrderResponse{
			OrderID:       orderID.String(),
			WorkflowState: string(result.Session.WorkflowState),
		}
		if result.Invoice != nil {
			resp.Invoice = toInvoiceDTO(result.Invoice)
			resp.Lines = toLineItemDTOs(result.Lines)
		}
		responses.WriteSuccess(w, resp)
	}
}

// RejectOrder closes a pending order without touching inventory or billing.
func RejectOrder(svc approval.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "approval service unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := svc.Reject(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"order_id":       orderID.String(),
			"workflow_state": string(sess.WorkflowState),
		})
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
