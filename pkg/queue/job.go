package queue

import (
	"context"
	"fmt"
	"sync"
)

// Job handles one message type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, msg Message) error
}

// Dispatcher routes messages to registered jobs by type.
type Dispatcher struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewDispatcher(jobs ...Job) *Dispatcher {
	d := &Dispatcher{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		_ = d.Register(j)
	}
	return d
}

func (d *Dispatcher) Register(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.jobs[job.Type()]; ok {
		return fmt.Errorf("job for %q already registered", job.Type())
	}
	d.jobs[job.Type()] = job
	return nil
}

func (d *Dispatcher) Lookup(msgType string) (Job, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	j, ok := d.jobs[msgType]
	return j, ok
}

// Dispatch runs the job registered for msg.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	job, ok := d.Lookup(msg.Type)
	if !ok {
		return fmt.Errorf("no job registered for type %q", msg.Type)
	}
	return job.Handle(ctx, msg)
}

// Types lists the registered message types.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.jobs))
	for t := range d.jobs {
		out = append(out, t)
	}
	return out
}
