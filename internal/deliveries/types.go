package deliveries

import (
	"fmt"
	"strings"
	"time"
)

// TTL is the validity window of an issued token.
const TTL = 24 * time.Hour

// Product is one line of a delivery's product list. Field names follow the
// Spanish wire format used by the admin and client pages.
type Product struct {
	Nombre   string `json:"nombre" validate:"required"`
	Cantidad int    `json:"cantidad" validate:"required,min=1"`
}

// PendingDelivery is an active, not-yet-confirmed delivery claim. The token is
// the real key; ID is the issue timestamp and informational only.
type PendingDelivery struct {
	ID        int64     `json:"id"`     // issue epoch millis
	Token     string    `json:"token"`  // 32-char hex, secret
	Cliente   string    `json:"cliente"`
	Ruta      string    `json:"ruta"`
	Productos []Product `json:"productos"`
	Expira    int64     `json:"expira"` // epoch millis, issue + TTL
	Asistido  bool      `json:"asistido"`
	Llegada   string    `json:"llegada,omitempty"` // RFC3339, set once on confirmation
}

// Active reports whether the claim can still be consumed at now.
func (p PendingDelivery) Active(now time.Time) bool {
	return !p.Asistido && now.UnixMilli() < p.Expira
}

// ConfirmedDelivery is one row of the append-only confirmed log. Products keep
// their structure here; the flattened "2 Leche, 1 Pan" form is derived only
// for display.
type ConfirmedDelivery struct {
	Timestamp string    `json:"timestamp"` // log-append RFC3339
	Cliente   string    `json:"cliente"`
	Ruta      string    `json:"ruta"`
	FechaISO  string    `json:"fechaISO"` // arrival RFC3339
	Productos []Product `json:"productos"`
}

// ProductSummary renders a product list as the printable "2 Leche, 1 Pan"
// form used in confirmation messages and the PDF report.
func ProductSummary(products []Product) string {
	if len(products) == 0 {
		return "Sin productos"
	}
	parts := make([]string, 0, len(products))
	for _, p := range products {
		parts = append(parts, fmt.Sprintf("%d %s", p.Cantidad, p.Nombre))
	}
	return strings.Join(parts, ", ")
}
