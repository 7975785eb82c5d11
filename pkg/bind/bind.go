// Package bind decodes and validates JSON request bodies.
//
//	var in orders.CheckoutInput
//	if !bind.JSON(w, r, &in) {
//	    return // 400 or 422 already written
//	}
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shashiranjanraj/eshop/config"
	"github.com/shashiranjanraj/eshop/pkg/response"
	"github.com/shashiranjanraj/eshop/pkg/validate"
)

const defaultMaxBody = 1 << 20

// ErrEmptyBody is returned by Decode for a request without a body.
var ErrEmptyBody = errors.New("bind: request body is empty")

// Decode reads r.Body into dest, capped at MAX_BODY_BYTES, and validates
// it. errs is non-empty on validation failure; err is set for malformed or
// oversized bodies.
func Decode(w http.ResponseWriter, r *http.Request, dest any) (errs map[string]string, err error) {
	limit := int64(config.Int("MAX_BODY_BYTES", defaultMaxBody))
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("bind: body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return nil, ErrEmptyBody
		default:
			return nil, fmt.Errorf("bind: invalid JSON: %w", err)
		}
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

// JSON is Decode plus the error responses. It reports whether the handler
// may continue.
func JSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	errs, err := Decode(w, r, dest)
	if err != nil {
		response.BadRequest(w, "Neplatný požadavek")
		return false
	}
	if errs != nil {
		response.ValidationError(w, errs)
		return false
	}
	return true
}
