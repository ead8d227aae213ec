package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"
	domrepo "github.com/RiverSpider/PavelBot/internal/domain/repository"
	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/queue"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Queue message types for digest jobs.
const (
	MsgDailyDigest    = "digest.daily_summary"
	MsgPaymentsDigest = "digest.upcoming_payments"
)

const enqueueLockTTL = 10 * time.Minute

// DigestRequest is the payload of one digest job.
type DigestRequest struct {
	UserID      int64             `json:"user_id"`
	Kind        models.DigestKind `json:"kind"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

// Locker grants a lock to one caller until ttl passes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DigestScheduler enqueues one digest job per subscriber on a cron schedule.
// Replicas sharing the lock store enqueue each run only once.
type DigestScheduler struct {
	cron   *cron.Cron
	users  domrepo.UserStore
	queue  domrepo.JobQueue
	locker Locker
	log    *logger.Logger
	now    func() time.Time
}

type ScheduleConfig struct {
	DailySummary string
	Payments     string
	Location     *time.Location
}

func NewDigestScheduler(users domrepo.UserStore, q domrepo.JobQueue, locker Locker, log *logger.Logger, cfg ScheduleConfig) (*DigestScheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &DigestScheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		users:  users,
		queue:  q,
		locker: locker,
		log:    log.With(logger.String("component", "digest_scheduler")),
		now:    time.Now,
	}

	for kind, spec := range map[models.DigestKind]string{
		models.DigestDailySummary: cfg.DailySummary,
		models.DigestPayments:     cfg.Payments,
	} {
		if spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(spec, s.runner(kind)); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", kind, spec, err)
		}
	}
	return s, nil
}

func (s *DigestScheduler) runner(kind models.DigestKind) func() {
	return func() {
		n, err := s.Enqueue(context.Background(), kind)
		if err != nil {
			s.log.Error("enqueue digests failed", logger.String("kind", string(kind)), logger.Error(err))
			return
		}
		s.log.Info("digests enqueued", logger.String("kind", string(kind)), logger.Int("users", n))
	}
}

func (s *DigestScheduler) Start() {
	s.cron.Start()
	s.log.Info("digest scheduler started", logger.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running enqueue, bounded by ctx.
func (s *DigestScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue publishes a job per subscriber of kind and returns how many were
// queued. A run already claimed by another replica queues nothing.
func (s *DigestScheduler) Enqueue(ctx context.Context, kind models.DigestKind) (int, error) {
	now := s.now()
	if s.locker != nil {
		key := fmt.Sprintf("digest:%s:%s", kind, now.UTC().Format("2006-01-02T15:04"))
		ok, err := s.locker.TryLock(ctx, key, enqueueLockTTL)
		if err != nil {
			return 0, fmt.Errorf("claim digest run: %w", err)
		}
		if !ok {
			s.log.Debug("digest run claimed elsewhere", logger.String("kind", string(kind)))
			return 0, nil
		}
	}

	users, err := s.users.Subscribers(ctx, kind)
	if err != nil {
		return 0, err
	}

	msgType := MsgDailyDigest
	if kind == models.DigestPayments {
		msgType = MsgPaymentsDigest
	}

	queued := 0
	for _, id := range users {
		req := DigestRequest{UserID: id, Kind: kind, ScheduledAt: now}
		if err := s.queue.PublishMessage(ctx, msgType, req); err != nil {
			s.log.Error("enqueue digest", logger.User(id), logger.Error(err))
			continue
		}
		queued++
	}
	return queued, nil
}

// digestJob holds what both digest jobs share.
type digestJob struct {
	notifications *NotificationsUseCase
	publisher     domrepo.DigestPublisher
	metrics       domrepo.Metrics
	log           *logger.Logger
	now           func() time.Time
}

func (j *digestJob) publish(ctx context.Context, d *models.Digest) error {
	d.ID = uuid.NewString()
	d.GeneratedAt = j.now().UTC()
	err := j.publisher.PublishDigest(ctx, d)
	j.metrics.RecordDigest(d.Kind, err == nil)
	return err
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, models.ErrNoToken) ||
		errors.Is(err, models.ErrNoAccounts) ||
		errors.Is(err, models.ErrUnauthorized)
}

func (j *digestJob) skip(req DigestRequest, err error) error {
	if permanent(err) {
		j.metrics.RecordDigest(req.Kind, false)
		j.log.Warn("digest skipped", logger.User(req.UserID), logger.String("kind", string(req.Kind)), logger.Error(err))
		return nil
	}
	return err
}

// DailyDigestJob sends the daily cash-flow summary. Days without operations
// produce no digest.
type DailyDigestJob struct{ digestJob }

func NewDailyDigestJob(n *NotificationsUseCase, pub domrepo.DigestPublisher, metrics domrepo.Metrics, log *logger.Logger) *DailyDigestJob {
	return &DailyDigestJob{digestJob{notifications: n, publisher: pub, metrics: metrics, log: log, now: time.Now}}
}

func (j *DailyDigestJob) Name() string { return "daily_digest" }
func (j *DailyDigestJob) Type() string { return MsgDailyDigest }

func (j *DailyDigestJob) Handle(ctx context.Context, msg queue.Message) error {
	req, err := queue.Decode[DigestRequest](msg)
	if err != nil {
		return err
	}
	req.Kind = models.DigestDailySummary

	summary, err := j.notifications.DailySummaryFor(ctx, req.UserID, req.ScheduledAt)
	if err != nil {
		return j.skip(req, err)
	}
	if summary.OperationsCount == 0 {
		return nil
	}
	return j.publish(ctx, &models.Digest{UserID: req.UserID, Kind: req.Kind, Summary: summary})
}

// PaymentsDigestJob sends the upcoming dividends and coupons. An empty
// calendar produces no digest.
type PaymentsDigestJob struct{ digestJob }

func NewPaymentsDigestJob(n *NotificationsUseCase, pub domrepo.DigestPublisher, metrics domrepo.Metrics, log *logger.Logger) *PaymentsDigestJob {
	return &PaymentsDigestJob{digestJob{notifications: n, publisher: pub, metrics: metrics, log: log, now: time.Now}}
}

func (j *PaymentsDigestJob) Name() string { return "payments_digest" }
func (j *PaymentsDigestJob) Type() string { return MsgPaymentsDigest }

func (j *PaymentsDigestJob) Handle(ctx context.Context, msg queue.Message) error {
	req, err := queue.Decode[DigestRequest](msg)
	if err != nil {
		return err
	}
	req.Kind = models.DigestPayments

	payments, err := j.notifications.UpcomingPayments(ctx, req.UserID)
	if err != nil {
		return j.skip(req, err)
	}
	if payments.Empty() {
		return nil
	}
	return j.publish(ctx, &models.Digest{UserID: req.UserID, Kind: req.Kind, Payments: payments})
}

var (
	_ queue.Job = (*DailyDigestJob)(nil)
	_ queue.Job = (*PaymentsDigestJob)(nil)
)
