package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/internal/domain/service"
	"github.com/RiverSpider/PavelBot/pkg/cache"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/util"
)

const (
	userLockTTL     = 5 * time.Second
	userLockRetries = 20
	userLockBackoff = 50 * time.Millisecond
)

// ErrUserBusy is returned when the per-user lock could not be taken.
var ErrUserBusy = models.ErrUserBusy

// UserStore keeps one JSON document per user plus a set of subscribers per
// digest kind. Tokens are stored encrypted.
type UserStore struct {
	cache    cache.Service
	cipher   service.TokenCipher
	provider repository.GatewayProvider
	log      *logger.Logger
	now      func() time.Time
}

// NewUserStore creates the store. provider may be nil; when set, its entry
// for a user is invalidated whenever that user's token changes.
func NewUserStore(c cache.Service, cipher service.TokenCipher, provider repository.GatewayProvider, log *logger.Logger) *UserStore {
	return &UserStore{
		cache:    c,
		cipher:   cipher,
		provider: provider,
		log:      log.With(logger.String("component", "user_store")),
		now:      time.Now,
	}
}

var _ repository.UserStore = (*UserStore)(nil)

func userKey(id int64) string {
	return cache.GenerateKey("user", strconv.FormatInt(id, 10))
}

func subscribersKey(kind models.DigestKind) string {
	return cache.GenerateKey("subscribers", string(kind))
}

// Get returns the user's settings; unknown users get empty settings.
func (s *UserStore) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st.EncryptedToken != "" {
		tok, err := s.cipher.Decrypt(st.EncryptedToken)
		if err != nil {
			// a rotated encryption key makes old tokens unreadable
			s.log.Warn("stored token cannot be decrypted", logger.User(userID), logger.Error(err))
		} else {
			st.Token = tok
		}
	}
	return st, nil
}

func (s *UserStore) load(ctx context.Context, userID int64) (*models.UserSettings, error) {
	var st models.UserSettings
	err := s.cache.Get(ctx, userKey(userID), &st)
	if errors.Is(err, cache.ErrCacheMiss) {
		return &models.UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	st.UserID = userID
	return &st, nil
}

func (s *UserStore) SetToken(ctx context.Context, userID int64, token string) error {
	sealed, err := s.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	err = s.update(ctx, userID, func(st *models.UserSettings) {
		st.EncryptedToken = sealed
	})
	if err != nil {
		return err
	}
	if s.provider != nil {
		s.provider.Invalidate(strconv.FormatInt(userID, 10))
	}
	s.log.Info("api token updated", logger.User(userID))
	return nil
}

func (s *UserStore) SetAccounts(ctx context.Context, userID int64, accountIDs []string) error {
	ids := util.Dedupe(accountIDs)
	return s.update(ctx, userID, func(st *models.UserSettings) {
		st.SelectedAccountIDs = ids
	})
}

func (s *UserStore) SetSubscriptions(ctx context.Context, userID int64, dailySummary, payments bool) error {
	err := s.update(ctx, userID, func(st *models.UserSettings) {
		st.DailySummary = dailySummary
		st.PaymentReminders = payments
	})
	if err != nil {
		return err
	}

	member := strconv.FormatInt(userID, 10)
	for kind, on := range map[models.DigestKind]bool{
		models.DigestDailySummary: dailySummary,
		models.DigestPayments:     payments,
	} {
		if on {
			err = s.cache.SAdd(ctx, subscribersKey(kind), member)
		} else {
			err = s.cache.SRem(ctx, subscribersKey(kind), member)
		}
		if err != nil {
			return fmt.Errorf("update %s subscribers: %w", kind, err)
		}
	}
	return nil
}

// Subscribers lists users subscribed to kind. Malformed members are skipped.
func (s *UserStore) Subscribers(ctx context.Context, kind models.DigestKind) ([]int64, error) {
	members, err := s.cache.SMembers(ctx, subscribersKey(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s subscribers: %w", kind, err)
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.log.Warn("skip malformed subscriber", logger.String("member", m))
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Settings loads several users at once without decrypting their tokens.
func (s *UserStore) Settings(ctx context.Context, userIDs []int64) (map[int64]*models.UserSettings, error) {
	keys := make([]string, 0, len(userIDs))
	byKey := make(map[string]int64, len(userIDs))
	for _, id := range userIDs {
		k := userKey(id)
		keys = append(keys, k)
		byKey[k] = id
	}

	docs, err := cache.MGetTyped[models.UserSettings](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make(map[int64]*models.UserSettings, len(docs))
	for k, st := range docs {
		st.UserID = byKey[k]
		out[st.UserID] = &st
	}
	return out, nil
}

// update applies fn to the stored document under a short per-user lock.
func (s *UserStore) update(ctx context.Context, userID int64, fn func(*models.UserSettings)) error {
	lock := cache.GenerateKey("lock", userKey(userID))
	if err := s.acquire(ctx, lock); err != nil {
		return err
	}
	defer func() {
		if err := s.cache.Unlock(context.Background(), lock); err != nil {
			s.log.Warn("release user lock", logger.User(userID), logger.Error(err))
		}
	}()

	st, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	fn(st)
	st.UpdatedAt = s.now().UTC()

	if err := s.cache.Set(ctx, userKey(userID), st, 0); err != nil {
		return fmt.Errorf("save user %d: %w", userID, err)
	}
	return nil
}

func (s *UserStore) acquire(ctx context.Context, key string) error {
	for i := 0; i < userLockRetries; i++ {
		ok, err := s.cache.TryLock(ctx, key, userLockTTL)
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		t := time.NewTimer(userLockBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return ErrUserBusy
}
