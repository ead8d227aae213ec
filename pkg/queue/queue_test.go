package queue

import (
	"context"
	"errors"
	"testing"
)

type digestPayload struct {
	UserID int64  `json:"user_id"`
	Kind   string `json:"kind"`
}

type recordingJob struct {
	typ  string
	seen []digestPayload
	err  error
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return j.typ }

func (j *recordingJob) Handle(_ context.Context, msg Message) error {
	p, err := Decode[digestPayload](msg)
	if err != nil {
		return err
	}
	j.seen = append(j.seen, p)
	return j.err
}

func TestNewMessageAndDecode(t *testing.T) {
	msg, err := NewMessage("digest.daily", digestPayload{UserID: 7, Kind: "daily"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.ID == "" || msg.Type != "digest.daily" || msg.EnqueuedAt.IsZero() {
		t.Fatalf("envelope not filled: %+v", msg)
	}

	other, _ := NewMessage("digest.daily", nil)
	if other.ID == msg.ID {
		t.Fatalf("message ids must be unique")
	}

	p, err := Decode[digestPayload](msg)
	if err != nil || p.UserID != 7 {
		t.Fatalf("decode: %+v %v", p, err)
	}
}

func TestDispatcherRoutesByType(t *testing.T) {
	daily := &recordingJob{typ: "digest.daily"}
	d := NewDispatcher(daily)

	if err := d.Register(&recordingJob{typ: "digest.daily"}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}

	msg, _ := NewMessage("digest.daily", digestPayload{UserID: 1})
	if err := d.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(daily.seen) != 1 || daily.seen[0].UserID != 1 {
		t.Fatalf("job not invoked: %+v", daily.seen)
	}

	unknown, _ := NewMessage("digest.unknown", nil)
	if err := d.Dispatch(context.Background(), unknown); err == nil {
		t.Fatalf("unknown type must fail")
	}
}

func TestDispatchPropagatesJobError(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispatcher(&recordingJob{typ: "x", err: boom})
	msg, _ := NewMessage("x", digestPayload{})
	if err := d.Dispatch(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		attempts, limit int
		want            bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
		{0, 0, false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(Message{Attempts: tc.attempts}, tc.limit); got != tc.want {
			t.Errorf("attempts=%d limit=%d: got %v", tc.attempts, tc.limit, got)
		}
	}
}
