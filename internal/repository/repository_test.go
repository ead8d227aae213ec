package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/cache"
	"github.com/RiverSpider/PavelBot/pkg/logger"
)

// reverseCipher is reversible and obviously not plaintext.
type reverseCipher struct{ fail bool }

func (c reverseCipher) Encrypt(plain string) (string, error) {
	return "enc:" + reverse(plain), nil
}

func (c reverseCipher) Decrypt(sealed string) (string, error) {
	if c.fail || !strings.HasPrefix(sealed, "enc:") {
		return "", errors.New("bad token")
	}
	return reverse(strings.TrimPrefix(sealed, "enc:")), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

type providerStub struct{ invalidated []string }

func (p *providerStub) Get(context.Context, string, string) (repository.BrokerageGateway, error) {
	return nil, nil
}

func (p *providerStub) Invalidate(identity string) {
	p.invalidated = append(p.invalidated, identity)
}

func newStore(t *testing.T) (*UserStore, *cache.MemoryCache, *providerStub) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	prov := &providerStub{}
	return NewUserStore(mc, reverseCipher{}, prov, logger.Nop()), mc, prov
}

func TestUserStoreUnknownUser(t *testing.T) {
	s, _, _ := newStore(t)
	st, err := s.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.UserID != 7 || st.Token != "" || len(st.SelectedAccountIDs) != 0 {
		t.Fatalf("unexpected defaults %+v", st)
	}
}

func TestUserStoreTokenIsEncryptedAndInvalidates(t *testing.T) {
	s, mc, prov := newStore(t)
	ctx := context.Background()

	if err := s.SetToken(ctx, 7, "t.secret-token"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	var raw string
	if err := mc.Get(ctx, userKey(7), &raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if strings.Contains(raw, "t.secret-token") {
		t.Fatalf("token stored in clear: %s", raw)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc["encrypted_api_token"] == nil {
		t.Fatalf("document missing encrypted token: %s", raw)
	}

	st, err := s.Get(ctx, 7)
	if err != nil || st.Token != "t.secret-token" {
		t.Fatalf("decrypted token = %q, err %v", st.Token, err)
	}
	if len(prov.invalidated) != 1 || prov.invalidated[0] != "7" {
		t.Fatalf("provider not invalidated: %v", prov.invalidated)
	}
}

func TestUserStoreUndecryptableTokenIsDropped(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	writer := NewUserStore(mc, reverseCipher{}, nil, logger.Nop())
	if err := writer.SetToken(ctx, 1, "t.token"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	reader := NewUserStore(mc, reverseCipher{fail: true}, nil, logger.Nop())
	st, err := reader.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.Token != "" || st.EncryptedToken == "" {
		t.Fatalf("unexpected settings %+v", st)
	}
}

func TestUserStoreKeepsFieldsAcrossUpdates(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	_ = s.SetToken(ctx, 3, "t.abc")
	if err := s.SetAccounts(ctx, 3, []string{"a", "b", "a"}); err != nil {
		t.Fatalf("set accounts: %v", err)
	}
	if err := s.SetSubscriptions(ctx, 3, true, false); err != nil {
		t.Fatalf("set subscriptions: %v", err)
	}

	st, _ := s.Get(ctx, 3)
	if st.Token != "t.abc" {
		t.Fatalf("token lost: %+v", st)
	}
	if len(st.SelectedAccountIDs) != 2 || st.SelectedAccountIDs[0] != "a" || st.SelectedAccountIDs[1] != "b" {
		t.Fatalf("accounts = %v", st.SelectedAccountIDs)
	}
	if !st.DailySummary || st.PaymentReminders || st.UpdatedAt.IsZero() {
		t.Fatalf("flags = %+v", st)
	}
}

func TestUserStoreSubscribers(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	_ = s.SetSubscriptions(ctx, 1, true, true)
	_ = s.SetSubscriptions(ctx, 2, true, false)
	_ = s.SetSubscriptions(ctx, 1, true, false)

	daily, err := s.Subscribers(ctx, models.DigestDailySummary)
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("daily subscribers = %v", daily)
	}

	payments, _ := s.Subscribers(ctx, models.DigestPayments)
	if len(payments) != 0 {
		t.Fatalf("payment subscribers = %v", payments)
	}

	settings, err := s.Settings(ctx, []int64{1, 2, 99})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if len(settings) != 2 || !settings[2].DailySummary {
		t.Fatalf("bulk settings = %+v", settings)
	}
}

type fakeProducer struct {
	topic  string
	key    []byte
	value  interface{}
	closed bool
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaDigestPublisher(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaDigestPublisher(fp, "finance.notifications")

	d := &models.Digest{ID: "d1", UserID: 42, Kind: models.DigestDailySummary}
	if err := pub.PublishDigest(context.Background(), d); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fp.topic != "finance.notifications" || string(fp.key) != "42" || fp.value != d {
		t.Fatalf("unexpected publish %+v", fp)
	}

	fp.err = errors.New("broker down")
	if err := pub.PublishDigest(context.Background(), d); !errors.Is(err, fp.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	_ = pub.Close()
	if !fp.closed {
		t.Fatalf("producer not closed")
	}
}
