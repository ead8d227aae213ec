package logger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of collected entries somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectorConfig struct {
	FlushInterval time.Duration // periodic flush
	MaxEntries    int           // distinct entries held before a forced flush
	Topic         string
	Source        string // service name stamped on each batch
	Publisher     Publisher
}

// CollectedEntry is a deduplicated warning or error with occurrence counts.
type CollectedEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
}

type collectedBatch struct {
	Source  string           `json:"source"`
	SentAt  time.Time        `json:"sent_at"`
	Entries []CollectedEntry `json:"entries"`
}

// Collector folds repeated log entries together and publishes them in
// batches, so a flapping upstream produces one record with a count instead
// of thousands.
type Collector struct {
	cfg     CollectorConfig
	mu      sync.Mutex
	entries map[string]*CollectedEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewCollector(cfg *CollectorConfig) *Collector {
	c := &Collector{
		cfg:     *cfg,
		entries: make(map[string]*CollectedEntry),
		stop:    make(chan struct{}),
	}
	if c.cfg.FlushInterval <= 0 {
		c.cfg.FlushInterval = 30 * time.Second
	}
	if c.cfg.MaxEntries <= 0 {
		c.cfg.MaxEntries = 100
	}

	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Collector) Add(level, msg string, fields map[string]any, caller string) {
	now := time.Now()
	key := entryKey(level, msg, fields, caller)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &CollectedEntry{
			Level:     level,
			Message:   msg,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []CollectedEntry
	if len(c.entries) >= c.cfg.MaxEntries {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		go c.send(batch)
	}
}

// Pending reports how many distinct entries await the next flush.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Collector) loop() {
	defer c.wg.Done()

	t := time.NewTicker(c.cfg.FlushInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			c.flush()
			return
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	if batch != nil {
		c.send(batch)
	}
}

func (c *Collector) drainLocked() []CollectedEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]CollectedEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.entries = make(map[string]*CollectedEntry)
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

func (c *Collector) send(entries []CollectedEntry) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch := collectedBatch{Source: c.cfg.Source, SentAt: time.Now().UTC(), Entries: entries}
	if err := c.cfg.Publisher.Publish(ctx, c.cfg.Topic, []byte(c.cfg.Source), batch); err != nil {
		// the logger itself is the failing sink here, stderr is all that is left
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(entries), err)
	}
}

// Close performs a final flush and stops the background loop.
func (c *Collector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func entryKey(level, msg string, fields map[string]any, caller string) string {
	raw, _ := json.Marshal(struct {
		L string         `json:"l"`
		M string         `json:"m"`
		F map[string]any `json:"f"`
		C string         `json:"c"`
	}{level, msg, fields, caller})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
