package deliveries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sebvill/go-delivery-claims/internal/tokens"
	"go.uber.org/zap"
)

// ErrNotFound covers a token that is missing, expired or already used. The
// three causes collapse to one error for callers but are distinguished in
// logs.
var ErrNotFound = errors.New("token not found")

// ErrTokenCollision is returned when a freshly generated token matches an
// active one. With 128-bit tokens this should never fire; it exists so a
// collision is rejected instead of silently overwriting a live claim.
var ErrTokenCollision = errors.New("token collides with an active claim")

// errInactiveToken aborts a pending mutation when no active record matches.
var errInactiveToken = errors.New("no active record for token")

// ConfirmationPublisher is the outbound event hook for successful
// confirmations (SQS in production).
type ConfirmationPublisher interface {
	SendConfirmationMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// ConfirmResult is a business-level confirmation outcome; infrastructure
// failures travel as errors instead.
type ConfirmResult struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// confirmationEvent is the payload published to the worker queue.
type confirmationEvent struct {
	Token         string `json:"token"`
	Cliente       string `json:"cliente"`
	Ruta          string `json:"ruta"`
	Llegada       string `json:"llegada"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Service implements the token lifecycle: issue, QR derivation, one-time
// confirmation and the confirmed-log reads.
type Service struct {
	store     *Store
	publisher ConfirmationPublisher // may be nil
	log       *zap.Logger
	ttl       time.Duration
	nowFunc   func() time.Time
}

// NewService wires a Service. publisher may be nil when no queue is
// configured; confirmations then skip event publishing.
func NewService(store *Store, publisher ConfirmationPublisher, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		log:       log,
		ttl:       TTL,
		nowFunc:   time.Now,
	}
}

// Issue creates a pending delivery claim and returns its token together with
// the claim URL handed to the recipient.
func (s *Service) Issue(ctx context.Context, cliente, ruta string, productos []Product, baseURL string) (token, urlCliente string, err error) {
	token, err = tokens.New()
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	now := s.nowFunc()
	rec := PendingDelivery{
		ID:        now.UnixMilli(),
		Token:     token,
		Cliente:   cliente,
		Ruta:      ruta,
		Productos: productos,
		Expira:    now.Add(s.ttl).UnixMilli(),
		Asistido:  false,
	}

	err = s.store.MutatePending(ctx, func(active []PendingDelivery) ([]PendingDelivery, error) {
		for _, e := range active {
			if e.Token == token {
				return nil, ErrTokenCollision
			}
		}
		return append(active, rec), nil
	})
	if err != nil {
		return "", "", err
	}

	urlCliente = fmt.Sprintf("%s/cliente.html?token=%s", baseURL, token)
	s.log.Info("token issued",
		zap.String("token", token),
		zap.String("cliente", cliente),
		zap.String("ruta", ruta),
		zap.Time("expira", time.UnixMilli(rec.Expira)))
	return token, urlCliente, nil
}

// findActive looks up token among the active claims; on a miss it classifies
// the cause against the raw collection so logs can tell missing, used and
// expired apart. Callers only ever see ErrNotFound.
func (s *Service) findActive(ctx context.Context, token string) (PendingDelivery, error) {
	active, err := s.store.LoadPending(ctx)
	if err != nil {
		return PendingDelivery{}, err
	}
	for _, e := range active {
		if e.Token == token {
			return e, nil
		}
	}

	reason := "unknown token"
	if all, rawErr := s.store.LoadPendingAll(ctx); rawErr == nil {
		for _, e := range all {
			if e.Token != token {
				continue
			}
			if e.Asistido {
				reason = "already used"
			} else {
				reason = "expired"
			}
			break
		}
	}
	s.log.Info("token lookup failed", zap.String("token", token), zap.String("reason", reason))
	return PendingDelivery{}, ErrNotFound
}

// QRURL returns the confirmation URL to encode in a QR image for an active
// token: it embeds the token, the derived sub-token and the derivation
// timestamp. Missing, used and expired tokens all return ErrNotFound.
func (s *Service) QRURL(ctx context.Context, token, baseURL string) (string, error) {
	if _, err := s.findActive(ctx, token); err != nil {
		return "", err
	}
	millis := s.nowFunc().UnixMilli()
	sub := tokens.DeriveSub(token, millis)
	url := fmt.Sprintf("%s/confirmar.html?token=%s&subToken=%s&timestamp=%d", baseURL, token, sub, millis)
	s.log.Debug("qr url built", zap.String("token", token), zap.Int64("timestamp", millis))
	return url, nil
}

// Confirm consumes a (token, sub-token, timestamp) triple exactly once.
// timestamp arrives raw because the missing-token check must win over a
// malformed timestamp. Business rejections come back as
// ConfirmResult{OK:false}; only infrastructure failures return an error.
func (s *Service) Confirm(ctx context.Context, mainToken, subToken, timestamp string) (ConfirmResult, error) {
	if trimmed := strings.TrimSpace(mainToken); trimmed == "" || trimmed == "undefined" {
		s.log.Info("confirmation without main token")
		return ConfirmResult{OK: false, Msg: "Token requerido"}, nil
	}

	now := s.nowFunc()
	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || !tokens.ValidSub(mainToken, subToken, millis, now, s.ttl) {
		s.log.Info("sub-token rejected",
			zap.String("token", mainToken),
			zap.String("timestamp", timestamp))
		return ConfirmResult{OK: false, Msg: "Sub-token inválido o expirado"}, nil
	}

	var confirmed PendingDelivery
	llegada := now.UTC().Format(time.RFC3339)
	err = s.store.MutatePending(ctx, func(active []PendingDelivery) ([]PendingDelivery, error) {
		for i := range active {
			if active[i].Token == mainToken {
				active[i].Asistido = true
				active[i].Llegada = llegada
				confirmed = active[i]
				return active, nil
			}
		}
		return nil, errInactiveToken
	})
	if errors.Is(err, errInactiveToken) {
		s.log.Info("confirmation for inactive token", zap.String("token", mainToken))
		return ConfirmResult{OK: false, Msg: "Token expirado o ya usado"}, nil
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	entry := ConfirmedDelivery{
		Timestamp: s.nowFunc().UTC().Format(time.RFC3339),
		Cliente:   confirmed.Cliente,
		Ruta:      confirmed.Ruta,
		FechaISO:  llegada,
		Productos: confirmed.Productos,
	}
	if err := s.store.AppendConfirmed(ctx, entry); err != nil {
		return ConfirmResult{}, err
	}

	s.publishConfirmation(ctx, confirmed, llegada)

	summary := ProductSummary(confirmed.Productos)
	s.log.Info("delivery confirmed",
		zap.String("token", mainToken),
		zap.String("cliente", confirmed.Cliente),
		zap.String("ruta", confirmed.Ruta),
		zap.String("productos", summary))
	return ConfirmResult{
		OK:  true,
		Msg: fmt.Sprintf("¡Asistencia confirmada para %s en ruta %s! Productos: %s", confirmed.Cliente, confirmed.Ruta, summary),
	}, nil
}

// publishConfirmation sends the confirmation event to the worker queue.
// Best-effort: the confirmation itself is already durable, so a publish
// failure is logged and swallowed.
func (s *Service) publishConfirmation(ctx context.Context, rec PendingDelivery, llegada string) {
	if s.publisher == nil {
		return
	}
	event := confirmationEvent{
		Token:         rec.Token,
		Cliente:       rec.Cliente,
		Ruta:          rec.Ruta,
		Llegada:       llegada,
		CorrelationID: uuid.NewString(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("encode confirmation event", zap.Error(err))
		return
	}
	attrs := map[string]string{
		"ruta":           rec.Ruta,
		"correlation_id": event.CorrelationID,
	}
	if err := s.publisher.SendConfirmationMessage(ctx, string(body), attrs); err != nil {
		s.log.Warn("publish confirmation event",
			zap.String("token", rec.Token),
			zap.Error(err))
	}
}

// GetPending returns the display info of an active claim.
func (s *Service) GetPending(ctx context.Context, token string) (PendingDelivery, error) {
	return s.findActive(ctx, token)
}

// ListActive returns all active pending claims (debug listing).
func (s *Service) ListActive(ctx context.Context) ([]PendingDelivery, error) {
	return s.store.LoadPending(ctx)
}

// ListConfirmed returns the confirmed log in append order.
func (s *Service) ListConfirmed(ctx context.Context) ([]ConfirmedDelivery, error) {
	return s.store.LoadConfirmed(ctx)
}

// ResetConfirmed wipes the confirmed log.
func (s *Service) ResetConfirmed(ctx context.Context) error {
	if err := s.store.ClearConfirmed(ctx); err != nil {
		return err
	}
	s.log.Info("confirmed log cleared")
	return nil
}

// RunSweeper prunes the pending collection every interval until ctx is done.
// Redundant with read-time pruning, but keeps the blob small on idle
// deployments.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.LoadPending(ctx); err != nil {
				s.log.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
