package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
)

// TokenCheck is the outcome of validating a new API token.
type TokenCheck struct {
	Valid    bool             `json:"valid"`
	Accounts []models.Account `json:"accounts,omitempty"`
}

// SettingsUseCase changes per-user settings.
type SettingsUseCase struct {
	users   domrepo.UserStore
	factory domrepo.GatewayFactory
	log     *logger.Logger
}

func NewSettingsUseCase(users domrepo.UserStore, factory domrepo.GatewayFactory, log *logger.Logger) *SettingsUseCase {
	return &SettingsUseCase{users: users, factory: factory, log: log.With(logger.String("component", "settings"))}
}

// SetToken checks the token by listing accounts and stores it only when
// the broker accepts it. A rejected token is not an error.
func (uc *SettingsUseCase) SetToken(ctx context.Context, userID int64, token string) (*TokenCheck, error) {
	token = strings.TrimSpace(token)
	accounts, err := uc.factory.NewGateway(token).ListAccounts(ctx)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			uc.log.Info("rejected api token", logger.User(userID))
			return &TokenCheck{Valid: false}, nil
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}

	if err := uc.users.SetToken(ctx, userID, token); err != nil {
		return nil, err
	}
	return &TokenCheck{Valid: true, Accounts: accounts}, nil
}

func (uc *SettingsUseCase) SetAccounts(ctx context.Context, userID int64, accountIDs []string) error {
	return uc.users.SetAccounts(ctx, userID, accountIDs)
}

func (uc *SettingsUseCase) SetSubscriptions(ctx context.Context, userID int64, dailySummary, payments bool) error {
	return uc.users.SetSubscriptions(ctx, userID, dailySummary, payments)
}
