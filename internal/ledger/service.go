package ledger

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-fold/internal/obs"
)

// Grant sources used as metric labels.
const (
	SourceClient     = "client"
	SourceWebhook    = "webhook"
	SourceReconciler = "reconciler"
)

// Service adds logging and metrics on top of a Store.
type Service struct {
	Store  Store
	Logger zerolog.Logger
}

// NewService wraps store.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{Store: store, Logger: logger}
}

// Grant runs the gated credit increment for orderID. Storage errors are
// logged and reported as GrantStorageUnavailable, never returned.
func (s *Service) Grant(ctx context.Context, orderID, source string) GrantResult {
	ctx, span := otel.Tracer("ledger").Start(ctx, "ledger.grant")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID), attribute.String("source", source))

	result, err := s.Store.GrantCredits(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		s.Logger.Error().Err(err).Str("order_id", orderID).Str("source", source).Msg("credit grant failed")
		result = GrantStorageUnavailable
	} else if result == GrantApplied {
		s.Logger.Info().Str("order_id", orderID).Str("source", source).Msg("credits granted")
	}
	span.SetAttributes(attribute.String("result", string(result)))
	obs.Inc(obs.CreditGrantTotal, source, string(result))
	return result
}
