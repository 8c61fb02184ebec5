package controllers

import (
	"net/http"
	"strings"

	"github.com/bunai-labs/bunai-backend/api/responses"
	"github.com/bunai-labs/bunai-backend/internal/approval"
	"github.com/bunai-labs/bunai-backend/internal/session"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type orderSummaryDTO struct {
	ID            string `json:"id"`
	CustomerPhone string `json:"customer_phone"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

type sessionItemDTO struct {
	ID               string   `json:"id"`
	MaterialName     string   `json:"material_name"`
	Color            *string  `json:"color,omitempty"`
	NormalizedMeters float64  `json:"normalized_meters"`
	RequestedMeters  *float64 `json:"requested_meters,omitempty"`
	Status           string   `json:"status"`
	InventoryStatus  *string  `json:"inventory_status,omitempty"`
	AvailableMeters  float64  `json:"available_meters"`
	ReplacedBy       *string  `json:"replaced_by,omitempty"`
}

type invoiceDTO struct {
	InvoiceNumber string `json:"invoice_number"`
	Subtotal      string `json:"subtotal"`
	TaxAmount     string `json:"tax_amount"`
	TotalAmount   string `json:"total_amount"`
	DocumentRef   string `json:"document_ref"`
}

type lineItemDTO struct {
	MaterialID     string  `json:"material_id"`
	Color          *string `json:"color,omitempty"`
	QuantityMeters float64 `json:"quantity_meters"`
	PricePerMeter  string  `json:"price_per_meter"`
}

type orderDetailResponse struct {
	Order         orderSummaryDTO  `json:"order"`
	WorkflowState string           `json:"workflow_state"`
	Items         []sessionItemDTO `json:"items"`
	Invoice       *invoiceDTO      `json:"invoice,omitempty"`
	Lines         []lineItemDTO    `json:"lines,omitempty"`
}

// ListOrders returns orders newest first, optionally filtered by customer
// phone via the ?phone= query parameter.
func ListOrders(repo session.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		phone := strings.TrimSpace(r.URL.Query().Get("phone"))
		orders, err := repo.ListOrders(r.Context(), phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]orderSummaryDTO, 0, len(orders))
		for _, order := range orders {
			dtos = append(dtos, toOrderSummaryDTO(&order))
		}
		responses.WriteSuccess(w, dtos)
	}
}

// OrderDetail returns the order, its session items, and, once approved, the
// invoice with its permanent line items.
func OrderDetail(repo session.Repository, approvalRepo approval.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil || approvalRepo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess, err := repo.FindByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := orderDetailResponse{
			Order:         toOrderSummaryDTO(order),
			WorkflowState: string(sess.WorkflowState),
			Items:         make([]sessionItemDTO, 0, len(sess.Items)),
		}
		for _, item := range sess.Items {
			resp.Items = append(resp.Items, toSessionItemDTO(item))
		}

		invoice, invErr := approvalRepo.FindInvoiceByOrderID(r.Context(), orderID)
		if invErr == nil {
			resp.Invoice = toInvoiceDTO(invoice)
			lines, linesErr := approvalRepo.LineItemsByOrderID(r.Context(), orderID)
			if linesErr != nil {
				responses.WriteError(r.Context(), logg, w, linesErr)
				return
			}
			resp.Lines = toLineItemDTOs(lines)
		} else if !pkgerrors.IsCode(invErr, pkgerrors.CodeNotFound) {
			responses.WriteError(r.Context(), logg, w, invErr)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}

func toOrderSummaryDTO(order *models.Order) orderSummaryDTO {
	return orderSummaryDTO{
		ID:            order.ID.String(),
		CustomerPhone: order.CustomerPhone,
		Status:        string(order.Status),
		CreatedAt:     order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func toSessionItemDTO(item models.OrderSessionItem) sessionItemDTO {
	dto := sessionItemDTO{
		ID:               item.ID.String(),
		MaterialName:     item.MaterialName,
		Color:            item.Color,
		NormalizedMeters: item.NormalizedMeters,
		RequestedMeters:  item.RequestedMeters,
		Status:           string(item.Status),
		AvailableMeters:  item.AvailableMeters,
	}
	if item.InventoryStatus != nil {
		status := string(*item.InventoryStatus)
		dto.InventoryStatus = &status
	}
	if item.ReplacedBy != nil {
		replaced := item.ReplacedBy.String()
		dto.ReplacedBy = &replaced
	}
	return dto
}

func toInvoiceDTO(invoice *models.Invoice) *invoiceDTO {
	if invoice == nil {
		return nil
	}
	return &invoiceDTO{
		InvoiceNumber: invoice.InvoiceNumber,
		Subtotal:      invoice.Subtotal.StringFixed(2),
		TaxAmount:     invoice.TaxAmount.StringFixed(2),
		TotalAmount:   invoice.TotalAmount.StringFixed(2),
		DocumentRef:   invoice.DocumentRef,
	}
}

func toLineItemDTOs(lines []models.OrderLineItem) []lineItemDTO {
	dtos := make([]lineItemDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, lineItemDTO{
			MaterialID:     line.MaterialID.String(),
			Color:          line.Color,
			QuantityMeters: line.QuantityMeters,
			PricePerMeter:  line.PricePerMeter.StringFixed(2),
		})
	}
	return dtos
}
