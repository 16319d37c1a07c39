package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func TestMailWorker_DeliversQueuedMessages(t *testing.T) {
	mailer := &recordingMailer{}
	w := NewMailWorker(mailer, zap.NewNop(), 8)
	w.Start(context.Background(), 2)

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := w.Enqueue(context.Background(), mail.Message{To: to}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	w.Stop()

	if len(mailer.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(mailer.sent))
	}
}

func TestMailWorker_QueueFull(t *testing.T) {
	w := NewMailWorker(&recordingMailer{}, zap.NewNop(), 1)

	if err := w.Enqueue(context.Background(), mail.Message{To: "a@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Enqueue(context.Background(), mail.Message{To: "b@example.com"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestMailWorker_SendFailureDoesNotStopWorker(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	w := NewMailWorker(mailer, zap.NewNop(), 4)
	w.Start(context.Background(), 1)

	_ = w.Enqueue(context.Background(), mail.Message{To: "a@example.com"})
	_ = w.Enqueue(context.Background(), mail.Message{To: "b@example.com"})
	w.Stop()

	if len(mailer.sent) != 2 {
		t.Fatalf("expected both attempts, got %d", len(mailer.sent))
	}
}
