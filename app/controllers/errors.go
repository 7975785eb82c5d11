// Package controllers holds the HTTP handlers. They decode and validate
// input, call a service and map its errors onto response envelopes.
package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/eshop/app/repositories"
	"github.com/shashiranjanraj/eshop/app/services/orders"
	"github.com/shashiranjanraj/eshop/app/services/shipments"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/packeta"
	"github.com/shashiranjanraj/eshop/pkg/response"
)

// fail writes the envelope for a service error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *orders.UnavailableError
		conflict    *orders.StockConflictError
		fault       *packeta.Fault
	)

	switch {
	case errors.As(err, &unavailable):
		response.Conflict(w, "Některé položky nejsou skladem", unavailable.Errors)
	case errors.As(err, &conflict):
		response.Conflict(w, conflict.Message, nil)
	case errors.Is(err, repositories.ErrNotFound):
		response.Error(w, http.StatusNotFound, "Objednávka nebyla nalezena")
	case errors.Is(err, orders.ErrUnknownProduct):
		response.Error(w, http.StatusUnprocessableEntity, "Produkt neexistuje nebo se již neprodává")
	case errors.Is(err, orders.ErrNotPaid):
		response.Conflict(w, "Platba zatím nebyla dokončena", nil)
	case errors.Is(err, orders.ErrAlreadyCancelled):
		response.Conflict(w, "Objednávka již byla zrušena", nil)
	case errors.Is(err, orders.ErrNotCancellable):
		response.Conflict(w, "Doručenou objednávku nelze zrušit", nil)
	case errors.Is(err, orders.ErrConcurrentUpdate):
		response.Conflict(w, "Objednávka byla mezitím změněna, zkuste to znovu", nil)
	case errors.Is(err, shipments.ErrNotShippable):
		response.Conflict(w, "Objednávku nelze odeslat, není ve stavu zaplacená", nil)
	case errors.As(err, &fault):
		logger.WithCtx(r.Context()).Warn("controllers: carrier rejected request", "path", r.URL.Path, "code", fault.Code, "error", err)
		response.Error(w, http.StatusBadGateway, "Dopravce odmítl požadavek: "+fault.Message)
	case errors.Is(err, shipments.ErrCarrier):
		logger.WithCtx(r.Context()).Error("controllers: carrier error", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusBadGateway, "Dopravce je nedostupný")
	case errors.Is(err, orders.ErrPayment):
		logger.WithCtx(r.Context()).Error("controllers: payment provider error", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusBadGateway, "Platební brána je nedostupná")
	default:
		logger.WithCtx(r.Context()).Error("controllers: unhandled error", "path", r.URL.Path, "error", err)
		response.ServerError(w)
	}
}
