package validation

import (
	"encoding/json"
	"net/url"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sebvill/go-delivery-claims/internal/deliveries"
	"go.uber.org/zap"
)

// ParseProductos decodes the `productos` query parameter, a JSON array of
// {nombre, cantidad}. Malformed input degrades to an empty list and is only
// logged, never surfaced: a bad product payload must not block token
// issuance. Items failing validation (blank name, cantidad < 1) are dropped
// individually.
func ParseProductos(raw string, v *validatorv10.Validate, log *zap.Logger) []deliveries.Product {
	if raw == "" || raw == "[]" {
		return []deliveries.Product{}
	}

	var parsed []deliveries.Product
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// some clients send the parameter percent-encoded twice
		if unescaped, uerr := url.QueryUnescape(raw); uerr == nil {
			if jerr := json.Unmarshal([]byte(unescaped), &parsed); jerr == nil {
				return validProducts(parsed, v, log)
			}
		}
		log.Warn("malformed productos parameter, using empty list",
			zap.String("raw", raw),
			zap.Error(err))
		return []deliveries.Product{}
	}
	return validProducts(parsed, v, log)
}

func validProducts(parsed []deliveries.Product, v *validatorv10.Validate, log *zap.Logger) []deliveries.Product {
	out := make([]deliveries.Product, 0, len(parsed))
	for _, p := range parsed {
		if err := v.Struct(p); err != nil {
			log.Warn("dropping invalid product", zap.String("nombre", p.Nombre), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}
