package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sebvill/go-delivery-claims/internal/deliveries"
	"github.com/sebvill/go-delivery-claims/internal/qr"
	"github.com/sebvill/go-delivery-claims/internal/report"
	"github.com/sebvill/go-delivery-claims/internal/validation"
	"go.uber.org/zap"
)

// HandlerConfig groups dependencies for the delivery handlers.
type HandlerConfig struct {
	Service  *deliveries.Service
	Renderer report.Renderer
	Log      *zap.Logger

	// DeployURL overrides the base URL embedded in generated links, for
	// deployments behind a fixed public hostname. With or without scheme;
	// empty falls back to the request's forwarded host/protocol.
	DeployURL string

	// StaticDir holds the admin/client/confirmation pages; empty disables
	// static serving.
	StaticDir string
}

// baseURL resolves the externally visible origin for links handed to clients.
func baseURL(c *gin.Context, deployURL string) string {
	if deployURL != "" {
		if strings.Contains(deployURL, "://") {
			return strings.TrimSuffix(deployURL, "/")
		}
		return "https://" + strings.TrimSuffix(deployURL, "/")
	}
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return scheme + "://" + host
}

// RegisterDeliveryRoutes registers the full HTTP surface.
func RegisterDeliveryRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	svc := cfg.Service
	log := cfg.Log

	if cfg.StaticDir != "" {
		r.StaticFile("/", filepath.Join(cfg.StaticDir, "admin.html"))
		for _, page := range []string{"admin.html", "cliente.html", "confirmar.html"} {
			r.StaticFile("/"+page, filepath.Join(cfg.StaticDir, page))
		}
	}
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	issue := func(c *gin.Context, cliente, ruta, productosRaw string) {
		productos := validation.ParseProductos(productosRaw, v, log)
		token, urlCliente, err := svc.Issue(c.Request.Context(), cliente, ruta, productos, baseURL(c, cfg.DeployURL))
		if err != nil {
			log.Error("issue token", zap.String("cliente", cliente), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "urlCliente": urlCliente})
	}

	r.GET("/generate-token", func(c *gin.Context) {
		cliente := c.DefaultQuery("cliente", "Cliente Test")
		ruta := c.DefaultQuery("ruta", "Ruta Test")
		issue(c, cliente, ruta, c.DefaultQuery("productos", "[]"))
	})

	r.GET("/generar-qr/:cliente/:ruta", func(c *gin.Context) {
		issue(c, c.Param("cliente"), c.Param("ruta"), c.DefaultQuery("productos", "[]"))
	})

	r.GET("/qr-image/:token", func(c *gin.Context) {
		token := c.Param("token")
		url, err := svc.QRURL(c.Request.Context(), token, baseURL(c, cfg.DeployURL))
		if errors.Is(err, deliveries.ErrNotFound) {
			c.String(http.StatusNotFound, "Expirado, ya usado o inválido")
			return
		}
		if err != nil {
			log.Error("qr lookup", zap.String("token", token), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_lookup_failed", "detail": err.Error()})
			return
		}
		png, err := qr.Encode(url)
		if err != nil {
			log.Error("qr encode", zap.String("token", token), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_encode_failed", "detail": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	r.POST("/confirmar-sub", func(c *gin.Context) {
		var req validation.ConfirmRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		res, err := svc.Confirm(c.Request.Context(), req.MainToken, req.SubToken, req.Timestamp.String())
		if err != nil {
			log.Error("confirm", zap.String("token", req.MainToken), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirm_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.GET("/asistencias", func(c *gin.Context) {
		confirmed, err := svc.ListConfirmed(c.Request.Context())
		if err != nil {
			log.Error("list confirmed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "detail": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(confirmed))
		for _, e := range confirmed {
			productos := e.Productos
			if productos == nil {
				productos = []deliveries.Product{}
			}
			out = append(out, gin.H{
				"cliente":   e.Cliente,
				"ruta":      e.Ruta,
				"productos": productos,
				"llegada":   e.FechaISO,
			})
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/get-entrega/:token", func(c *gin.Context) {
		rec, err := svc.GetPending(c.Request.Context(), c.Param("token"))
		if errors.Is(err, deliveries.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token inválido"})
			return
		}
		if err != nil {
			log.Error("get entrega", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed", "detail": err.Error()})
			return
		}
		productos := rec.Productos
		if productos == nil {
			productos = []deliveries.Product{}
		}
		c.JSON(http.StatusOK, gin.H{
			"cliente":   rec.Cliente,
			"ruta":      rec.Ruta,
			"productos": productos,
		})
	})

	r.GET("/debug-tokens", func(c *gin.Context) {
		active, err := svc.ListActive(c.Request.Context())
		if err != nil {
			log.Error("list active", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "detail": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(active))
		for _, e := range active {
			out = append(out, gin.H{
				"token":     e.Token,
				"cliente":   e.Cliente,
				"productos": e.Productos,
				"expira":    time.UnixMilli(e.Expira).UTC().Format(time.RFC3339),
				"asistido":  e.Asistido,
			})
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/finalizar-pdf", func(c *gin.Context) {
		ctx := c.Request.Context()
		confirmed, err := svc.ListConfirmed(ctx)
		if err != nil {
			log.Error("load confirmed for pdf", zap.Error(err))
			c.String(http.StatusInternalServerError, "Error PDF: "+err.Error())
			return
		}
		if len(confirmed) == 0 {
			c.String(http.StatusBadRequest, "No hay confirmaciones para generar PDF. (Genera una asistencia primero).")
			return
		}

		html, err := report.BuildHTML(confirmed, time.Now())
		if err != nil {
			log.Error("build report html", zap.Error(err))
			c.String(http.StatusInternalServerError, "Error PDF: "+err.Error())
			return
		}
		pdf, err := cfg.Renderer.RenderPDF(ctx, html)
		if err != nil {
			log.Error("render pdf", zap.Int("rows", len(confirmed)), zap.Error(err))
			c.String(http.StatusInternalServerError, "Error PDF: "+err.Error())
			return
		}

		log.Info("pdf generated", zap.Int("rows", len(confirmed)))
		c.Header("Content-Disposition", "attachment; filename=reporte-"+time.Now().UTC().Format("2006-01-02")+".pdf")
		c.Data(http.StatusOK, "application/pdf", pdf)
	})

	r.DELETE("/borrar-logs", func(c *gin.Context) {
		if err := svc.ResetConfirmed(c.Request.Context()); err != nil {
			log.Error("reset confirmed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "Reiniciado"})
	})
}
