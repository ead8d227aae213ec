package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	"github.com/RiverSpider/PavelBot/internal/domain/repository"

	"golang.org/x/sync/singleflight"
)

type clientEntry struct {
	gw          repository.BrokerageGateway
	fingerprint string
}

// ClientCache keeps at most one live gateway per identity. Gateways for one
// identity are built one at a time: concurrent first access with the same
// credential shares a single build, and a different credential waits for
// the running build before replacing it.
type ClientCache struct {
	factory repository.GatewayFactory

	mu      sync.RWMutex
	entries map[string]clientEntry
	group   singleflight.Group
}

func NewClientCache(factory repository.GatewayFactory) *ClientCache {
	return &ClientCache{
		factory: factory,
		entries: make(map[string]clientEntry),
	}
}

func (c *ClientCache) Get(ctx context.Context, identity, token string) (repository.BrokerageGateway, error) {
	if token == "" {
		return nil, models.ErrNoToken
	}

	fp := Fingerprint(token)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if gw, ok := c.lookup(identity, fp); ok {
			return gw, nil
		}

		v, _, _ := c.group.Do(identity, func() (interface{}, error) {
			if gw, ok := c.lookup(identity, fp); ok {
				return clientEntry{gw: gw, fingerprint: fp}, nil
			}
			e := clientEntry{gw: c.factory.NewGateway(token), fingerprint: fp}

			c.mu.Lock()
			c.entries[identity] = e
			c.mu.Unlock()
			return e, nil
		})
		// joined a build for another credential
		if e := v.(clientEntry); e.fingerprint == fp {
			return e.gw, nil
		}
	}
}

func (c *ClientCache) lookup(identity, fp string) (repository.BrokerageGateway, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[identity]
	if !ok || e.fingerprint != fp {
		return nil, false
	}
	return e.gw, true
}

// Invalidate drops the gateway held for identity.
func (c *ClientCache) Invalidate(identity string) {
	c.mu.Lock()
	delete(c.entries, identity)
	c.mu.Unlock()
}

func (c *ClientCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fingerprint identifies a credential without keeping it around.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
