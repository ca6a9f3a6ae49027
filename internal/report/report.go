package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/sebvill/go-delivery-claims/internal/deliveries"
)

// Renderer turns a rendered HTML document into PDF bytes. The production
// implementation drives a headless Chrome; tests substitute a fake.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

var (
	bogotaOnce sync.Once
	bogota     *time.Location
)

// reportLocation resolves the display timezone. Bogota has no DST, so the
// fixed-offset fallback is exact when tzdata is unavailable.
func reportLocation() *time.Location {
	bogotaOnce.Do(func() {
		loc, err := time.LoadLocation("America/Bogota")
		if err != nil {
			loc = time.FixedZone("-05", -5*60*60)
		}
		bogota = loc
	})
	return bogota
}

// FormatFecha formats an RFC3339 timestamp for display in the report,
// dd/mm/yyyy hh:mm AM/PM in Bogota time.
func FormatFecha(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "Fecha inválida"
	}
	return t.In(reportLocation()).Format("02/01/2006 03:04 PM")
}

var reportTemplate = template.Must(template.New("reporte").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Reporte de Confirmaciones</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 20px; background-color: #042b17ff; color: #ffffffff; }
      h1 { text-align: center; color: #ffffffff; }
      table { width: 100%; border-collapse: collapse; background-color: #082519ff; }
      th, td { border: 1px solid #ffffffff; padding: 8px; text-align: left; color: #ffffffff; }
      th { background-color: #042b17ff; font-weight: bold; }
      .cliente { width: 25%; }
      .ruta { width: 20%; }
      .productos { width: 35%; }
      .fecha { width: 20%; }
      tr:nth-child(even) { background-color: #052913ff; }
      tr:nth-child(odd) { background-color: #082519ff; }
      p { color: #ffffffff; }
    </style>
  </head>
  <body>
    <h1>Reporte de Confirmaciones</h1>
    <p><strong>Total:</strong> {{.Total}}</p>
    <p><strong>Actualización:</strong> {{.Actualizacion}}</p>
    <table>
      <thead>
        <tr>
          <th class="cliente">Cliente</th>
          <th class="ruta">Ruta</th>
          <th class="productos">Productos</th>
          <th class="fecha">Hora</th>
        </tr>
      </thead>
      <tbody>
        {{range .Rows}}<tr>
          <td class="cliente">{{.Cliente}}</td>
          <td class="ruta">{{.Ruta}}</td>
          <td class="productos">{{.Productos}}</td>
          <td class="fecha">{{.Fecha}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    <p><strong>Fin.</strong></p>
  </body>
</html>
`))

type reportRow struct {
	Cliente   string
	Ruta      string
	Productos string
	Fecha     string
}

type reportData struct {
	Total         int
	Actualizacion string
	Rows          []reportRow
}

// BuildHTML renders the confirmed-deliveries table, newest entry first.
func BuildHTML(confirmed []deliveries.ConfirmedDelivery, now time.Time) (string, error) {
	rows := make([]reportRow, 0, len(confirmed))
	for i := len(confirmed) - 1; i >= 0; i-- {
		c := confirmed[i]
		rows = append(rows, reportRow{
			Cliente:   c.Cliente,
			Ruta:      c.Ruta,
			Productos: deliveries.ProductSummary(c.Productos),
			Fecha:     FormatFecha(c.FechaISO),
		})
	}
	data := reportData{
		Total:         len(confirmed),
		Actualizacion: now.In(reportLocation()).Format("02/01/2006 03:04 PM"),
		Rows:          rows,
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}
