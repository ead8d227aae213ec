package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
)

// Session is what a report needs to talk to the broker for one user.
type Session struct {
	UserID     int64
	Gateway    domrepo.BrokerageGateway
	AccountIDs []string
}

// SessionResolver turns a user id into a gateway and account selection.
type SessionResolver struct {
	users        domrepo.UserStore
	provider     domrepo.GatewayProvider
	defaultToken string
	maxAccounts  int
}

func NewSessionResolver(users domrepo.UserStore, provider domrepo.GatewayProvider, defaultToken string, maxAccounts int) *SessionResolver {
	return &SessionResolver{
		users:        users,
		provider:     provider,
		defaultToken: defaultToken,
		maxAccounts:  maxAccounts,
	}
}

// Resolve uses the user's stored token or the configured default one. With
// no accounts selected, the broker's first account is used.
func (r *SessionResolver) Resolve(ctx context.Context, userID int64) (*Session, error) {
	st, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	gw, err := r.gateway(ctx, userID, st.Token)
	if err != nil {
		return nil, err
	}

	ids := st.SelectedAccountIDs
	if len(ids) == 0 {
		accounts, err := gw.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		if len(accounts) == 0 {
			return nil, models.ErrNoAccounts
		}
		ids = []string{accounts[0].ID}
	}
	if r.maxAccounts > 0 && len(ids) > r.maxAccounts {
		ids = ids[:r.maxAccounts]
	}

	return &Session{UserID: userID, Gateway: gw, AccountIDs: ids}, nil
}

// Gateway resolves only the gateway, for calls that list every account.
func (r *SessionResolver) Gateway(ctx context.Context, userID int64) (domrepo.BrokerageGateway, error) {
	st, err := r.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.gateway(ctx, userID, st.Token)
}

func (r *SessionResolver) gateway(ctx context.Context, userID int64, token string) (domrepo.BrokerageGateway, error) {
	if token == "" {
		token = r.defaultToken
	}
	if token == "" {
		return nil, models.ErrNoToken
	}
	gw, err := r.provider.Get(ctx, strconv.FormatInt(userID, 10), token)
	if err != nil {
		if errors.Is(err, models.ErrNoToken) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve gateway: %w", err)
	}
	return gw, nil
}
