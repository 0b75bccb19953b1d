package validation

import (
	"errors"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/tiendacaps/pos-api/internal/domain"
)

// New returns a configured validator with the POS custom tags registered.
func New() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())

	// payment_method accepts only the methods the sale backend understands.
	_ = v.RegisterValidation("payment_method", func(fl validatorv10.FieldLevel) bool {
		return domain.KnownPaymentMethod(domain.PaymentMethod(fl.Field().String()))
	})

	return v
}

// ErrorsToMap flattens validator errors into a field -> message map suitable
// for JSON error payloads.
func ErrorsToMap(err error) map[string]any {
	out := map[string]any{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}
