package controllers

import (
	"net/http"
	"strings"

	"github.com/bunai-labs/bunai-backend/api/responses"
	"github.com/bunai-labs/bunai-backend/api/validators"
	"github.com/bunai-labs/bunai-backend/internal/negotiation"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type inboundMessageRequest struct {
	Phone   string `json:"phone" validate:"required,min=5"`
	Message string `json:"message" validate:"required"`
}

type inboundMessageResponse struct {
	Reply   string  `json:"reply"`
	OrderID *string `json:"order_id,omitempty"`
}

// InboundMessage is the webhook entry point for customer and owner messages.
// The reply text is what the messaging provider should send back to the
// sender.
func InboundMessage(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "negotiation service unavailable"))
			return
		}

		var payload inboundMessageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		phone := strings.TrimSpace(payload.Phone)
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "message must not be empty"))
			return
		}

		reply, err := svc.ProcessInbound(r.Context(), phone, message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := inboundMessageResponse{Reply: reply.Text}
		if reply.OrderID != nil {
			id := reply.OrderID.String()
			resp.OrderID = &id
		}
		responses.WriteSuccess(w, resp)
	}
}
