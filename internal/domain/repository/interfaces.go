package repository

import (
	"context"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
)

// BrokerageGateway is bound to one credential and reads brokerage data.
type BrokerageGateway interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetPositions(ctx context.Context, accountID string) ([]models.Position, error)
	// GetOperations returns executed operations in [from, to].
	GetOperations(ctx context.Context, accountID string, from, to time.Time) ([]models.Operation, error)
	// GetInstrumentName never fails; unknown instruments get a placeholder.
	GetInstrumentName(ctx context.Context, instrumentID string) string
	GetInstrument(ctx context.Context, instrumentID string) (models.Instrument, error)
	GetUpcomingDividends(ctx context.Context, instrumentUID string) ([]models.PaymentEvent, error)
	GetUpcomingCoupons(ctx context.Context, instrumentID string) ([]models.PaymentEvent, error)
}

// GatewayFactory builds a gateway for a credential.
type GatewayFactory interface {
	NewGateway(token string) BrokerageGateway
}

// GatewayProvider resolves the live gateway for an identity.
type GatewayProvider interface {
	Get(ctx context.Context, identity, token string) (BrokerageGateway, error)
	Invalidate(identity string)
}

// UserStore keeps per-user settings.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*models.UserSettings, error)
	SetToken(ctx context.Context, userID int64, token string) error
	SetAccounts(ctx context.Context, userID int64, accountIDs []string) error
	SetSubscriptions(ctx context.Context, userID int64, dailySummary, payments bool) error
	Subscribers(ctx context.Context, kind models.DigestKind) ([]int64, error)
}

// DigestPublisher hands digests to the delivery collaborator.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, d *models.Digest) error
	Close() error
}

// JobQueue enqueues background jobs by type.
type JobQueue interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Metrics records engine-level measurements.
type Metrics interface {
	RecordFetch(op string, seconds float64, failed int)
	RecordAccountFailure(kind models.ErrorKind)
	RecordMalformed(count int)
	RecordDigest(kind models.DigestKind, ok bool)
	RecordLatency(op string, seconds float64)
}
