package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftandcart/storefront-backend/api/middleware"
	"github.com/craftandcart/storefront-backend/api/responses"
	"github.com/craftandcart/storefront-backend/api/validators"
	"github.com/craftandcart/storefront-backend/internal/checkout"
	pkgerrors "github.com/craftandcart/storefront-backend/pkg/errors"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	"github.com/craftandcart/storefront-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createPaymentIntentRequest struct {
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
}

// CreatePaymentIntent turns the submitted item list into a pending order
// and a gateway payment intent.
func CreatePaymentIntent(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity"))
			return
		}

		var req createPaymentIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]checkout.Line, 0, len(req.Items))
		for _, item := range req.Items {
			productID, perr := uuid.Parse(item.ProductID)
			if perr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id").
					WithDetails(map[string]any{"product_id": item.ProductID}))
				return
			}
			items = append(items, checkout.Line{ProductID: productID, Quantity: item.Quantity})
		}

		result, err := svc.Execute(ctx, userID, middleware.EmailFromContext(ctx), checkout.Input{
			Items:           items,
			ShippingAddress: req.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetPaymentIntent proxies the gateway's view of an intent so the
// storefront can poll payment progress.
func GetPaymentIntent(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		intent, err := svc.RetrieveIntent(ctx, chi.URLParam(r, "intentId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Minor units stay at the gateway boundary; the API speaks major units.
		amount := decimal.NewFromInt(intent.AmountMinor).Shift(-2)

		responses.WriteSuccess(w, map[string]any{
			"id":       intent.ID,
			"status":   intent.Status,
			"amount":   amount,
			"currency": intent.Currency,
		})
	}
}
