package jobx

import "time"

// WorkerOptions tunes the worker pool started by Client.Start.
type WorkerOptions struct {
	// Queues are polled in order; Enqueue falls back to the first one.
	Queues      []string
	Concurrency int

	// PollInterval drives scheduled-job promotion and the pause after a
	// failed dequeue.
	PollInterval      time.Duration
	DequeueTimeout    time.Duration
	ShutdownTimeout   time.Duration
	DefaultRetryDelay time.Duration
}

type WorkerOption func(*WorkerOptions)

func defaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Queues:            []string{"email"},
		Concurrency:       4,
		PollInterval:      time.Second,
		DequeueTimeout:    5 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		DefaultRetryDelay: 30 * time.Second,
	}
}

// resolve applies options over the defaults. Non-positive values keep the
// default instead of disabling the setting.
func resolve(options []WorkerOption) WorkerOptions {
	def := defaultWorkerOptions()
	opts := def
	for _, apply := range options {
		apply(&opts)
	}

	if len(opts.Queues) == 0 {
		opts.Queues = def.Queues
	}
	opts.Concurrency = orDefault(opts.Concurrency, def.Concurrency)
	opts.PollInterval = orDefault(opts.PollInterval, def.PollInterval)
	opts.DequeueTimeout = orDefault(opts.DequeueTimeout, def.DequeueTimeout)
	opts.ShutdownTimeout = orDefault(opts.ShutdownTimeout, def.ShutdownTimeout)
	opts.DefaultRetryDelay = orDefault(opts.DefaultRetryDelay, def.DefaultRetryDelay)
	return opts
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func WithQueues(queues ...string) WorkerOption {
	return func(o *WorkerOptions) { o.Queues = queues }
}

func WithConcurrency(n int) WorkerOption {
	return func(o *WorkerOptions) { o.Concurrency = n }
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.PollInterval = d }
}

func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.DequeueTimeout = d }
}

func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.ShutdownTimeout = d }
}

// WithDefaultRetryDelay sets the wait before a failed job is retried.
func WithDefaultRetryDelay(d time.Duration) WorkerOption {
	return func(o *WorkerOptions) { o.DefaultRetryDelay = d }
}
