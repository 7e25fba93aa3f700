package jobx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/logx"
)

// HandlerFunc processes one job. A non-nil error counts as a failed attempt.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// Enqueuer is the producer side of a queue. Services depend on this rather
// than on Client.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
}

// Queue is a storage backend for jobs.
type Queue interface {
	Enqueuer
	// Dequeue returns nil, nil when timeout passes with nothing ready.
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*JobInfo, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errMsg string) (retry bool, err error)
	Retry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteScheduled(ctx context.Context, queues []string) error
}

// Client routes jobs to registered handlers and runs the worker pool.
type Client struct {
	queue Queue
	opts  WorkerOptions

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	running atomic.Bool
}

func NewClient(queue Queue, options ...WorkerOption) *Client {
	return &Client{
		queue:    queue,
		opts:     resolve(options),
		handlers: map[string]HandlerFunc{},
	}
}

// Register binds jobType to handler, replacing any earlier binding.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	c.handlers[jobType] = handler
	c.mu.Unlock()
}

func (c *Client) handler(jobType string) (HandlerFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[jobType]
	return h, ok
}

func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.Type == "" {
		return "", jobxErrors.New(ErrInvalidJob).WithDetail("reason", "empty type")
	}
	if job.Queue == "" {
		job.Queue = c.opts.Queues[0]
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	return c.queue.Enqueue(ctx, job)
}

// Start runs the scheduler and Concurrency workers until ctx is cancelled,
// then waits up to ShutdownTimeout for in-flight jobs.
func (c *Client) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return jobxErrors.New(ErrAlreadyRunning)
	}
	defer c.running.Store(false)

	logx.WithFields(logx.Fields{
		"queues":      c.opts.Queues,
		"concurrency": c.opts.Concurrency,
	}).Info("jobx: worker pool started")

	var wg sync.WaitGroup
	wg.Go(func() { c.promoteLoop(ctx) })
	for id := range c.opts.Concurrency {
		wg.Go(func() { c.work(ctx, id) })
	}

	<-ctx.Done()

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		logx.Info("jobx: worker pool stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.WithField("timeout", c.opts.ShutdownTimeout.String()).
			Warn("jobx: gave up waiting for in-flight jobs")
	}
	return nil
}

func (c *Client) promoteLoop(ctx context.Context) {
	tick := time.NewTicker(c.opts.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		err := c.queue.PromoteScheduled(ctx, c.opts.Queues)
		if err != nil && ctx.Err() == nil {
			logx.WithError(err).Warn("jobx: promoting scheduled jobs failed")
		}
	}
}

func (c *Client) work(ctx context.Context, id int) {
	for ctx.Err() == nil {
		job, err := c.queue.Dequeue(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		switch {
		case err != nil && ctx.Err() == nil:
			logx.WithError(err).WithField("worker", id).Warn("jobx: dequeue failed")
			c.pause(ctx)
		case job != nil:
			c.process(ctx, job)
		}
	}
}

func (c *Client) pause(ctx context.Context) {
	t := time.NewTimer(c.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Client) process(ctx context.Context, job *JobInfo) {
	log := logx.WithFields(logx.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempt":  job.Attempts,
	})

	handler, ok := c.handler(job.Type)
	if !ok {
		log.Warn("jobx: no handler registered")
		// fail without retry: the handler set does not change between attempts
		_, _ = c.queue.Fail(ctx, job.ID, jobxErrors.New(ErrNoHandler).Error())
		return
	}

	runErr := run(ctx, handler, job)
	if runErr == nil {
		if err := c.queue.Complete(ctx, job.ID); err != nil {
			log.WithError(err).Error("jobx: completing job failed")
		}
		return
	}

	log.WithError(runErr).Warn("jobx: attempt failed")
	retry, err := c.queue.Fail(ctx, job.ID, runErr.Error())
	switch {
	case err != nil:
		log.WithError(err).Error("jobx: recording failure failed")
	case retry:
		if err := c.queue.Retry(ctx, job.ID, c.opts.DefaultRetryDelay); err != nil {
			log.WithError(err).Error("jobx: scheduling retry failed")
		}
	}
}

// run converts a handler panic into an ErrHandlerPanic failure.
func run(ctx context.Context, handler HandlerFunc, job *JobInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jobxErrors.NewWithCause(ErrHandlerPanic, fmt.Errorf("%v", r))
		}
	}()
	return handler(ctx, job)
}
