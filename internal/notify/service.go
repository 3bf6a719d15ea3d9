package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"blogpush/pkg/logx"
)

// Config controls the chat notification pipeline. Token and ChatID come from
// the environment; when either is missing the notifier stays disabled.
type Config struct {
	Enabled     bool
	Token       string
	ChatID      int64
	RatePerSec  int
	QueueSize   int
	SendTimeout time.Duration
}

// Sender is the transport behind the notifier.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Service is an async, rate-limited, fire-and-forget notifier: delivery
// failures are logged and swallowed, never propagated to the caller.
type Service struct {
	log     logx.Logger
	sender  Sender
	cfg     Config
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     chan string
	accepting bool

	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{
		log:     log,
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil || !s.cfg.Enabled || s.sender == nil {
		return
	}
	s.queue = make(chan string, s.cfg.QueueSize)
	s.accepting = true

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	q := s.queue
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.workerLoop(runCtx, q)
	}()
}

// Stop stops intake and drains queued messages best-effort until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q := s.queue
	cancel := s.runCancel
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(q)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
}

// Send enqueues a message. It never blocks and never fails: a full queue or a
// stopped notifier just drops the message with a log line.
func (s *Service) Send(ctx context.Context, text string) {
	if ctx != nil && ctx.Err() != nil {
		return
	}
	// Enqueue under the lock so Stop cannot close the channel mid-send.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil || !s.accepting {
		return
	}
	select {
	case s.queue <- text:
	default:
		s.log.Warn("notification dropped (queue full)", logx.Int("queue_cap", cap(s.queue)))
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan string) {
	for text := range q {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		err := s.sender.SendText(callCtx, s.cfg.ChatID, text)
		cancel()
		if err != nil {
			// Best-effort by contract: log and move on.
			s.log.Warn("notification send failed", logx.Err(err))
		}
	}
}
