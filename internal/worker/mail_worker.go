package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/mail"
)

// ErrQueueFull is returned when the mail backlog is at capacity.
var ErrQueueFull = errors.New("mail queue full")

// MailWorker delivers queued messages on a fixed pool of goroutines so
// request handlers never wait on SMTP.
type MailWorker struct {
	mailer mail.Mailer
	logger *zap.Logger
	queue  chan mail.Message
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMailWorker builds a worker with a backlog of size messages.
func NewMailWorker(mailer mail.Mailer, logger *zap.Logger, size int) *MailWorker {
	if size <= 0 {
		size = 64
	}
	return &MailWorker{mailer: mailer, logger: logger, queue: make(chan mail.Message, size)}
}

// Start launches n senders. They drain the queue until Stop is called.
func (w *MailWorker) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for msg := range w.queue {
				if err := w.mailer.Send(ctx, msg); err != nil {
					w.logger.Error("mail delivery failed", zap.String("to", msg.To), zap.Error(err))
				}
			}
		}()
	}
}

// Enqueue schedules msg without blocking.
func (w *MailWorker) Enqueue(_ context.Context, msg mail.Message) error {
	select {
	case w.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for pending messages to be sent.
func (w *MailWorker) Stop() {
	w.once.Do(func() { close(w.queue) })
	w.wg.Wait()
}
