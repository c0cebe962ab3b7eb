package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"storyloom/backend/internal/mail"
	"storyloom/backend/internal/otp/domain"
)

// memRepo is an in-memory repository.Repository keyed by email|purpose.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]domain.Challenge
	upsertErr error
	findErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]domain.Challenge)}
}

func rowKey(email string, p domain.Purpose) string { return email + "|" + string(p) }

func (r *memRepo) UpsertLive(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	row := *c
	row.Attempts = 0
	row.ConsumedAt = nil
	r.rows[rowKey(c.Email, c.Purpose)] = row
	return nil
}

func (r *memRepo) FindLive(ctx context.Context, email string, p domain.Purpose) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	row, ok := r.rows[rowKey(email, p)]
	if !ok || row.ConsumedAt != nil {
		return nil, nil
	}
	return &row, nil
}

func (r *memRepo) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, row := range r.rows {
		if row.ID == id && row.ConsumedAt == nil {
			row.ConsumedAt = &at
			r.rows[k] = row
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) IncrementAttempts(ctx context.Context, id string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, row := range r.rows {
		if row.ID == id && row.ConsumedAt == nil {
			row.Attempts++
			r.rows[k] = row
			return row.Attempts, true, nil
		}
	}
	return 0, false, nil
}

func (r *memRepo) get(email string, p domain.Purpose) (domain.Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[rowKey(email, p)]
	return row, ok
}

func (r *memRepo) snapshot() map[string]domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.Challenge, len(r.rows))
	for k, v := range r.rows {
		out[k] = v
	}
	return out
}

func (r *memRepo) restore(rows map[string]domain.Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
}

// memTx rolls the repository back when fn fails. It serializes transactions.
type memTx struct {
	mu   sync.Mutex
	repo *memRepo
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.repo.snapshot()
	if err := fn(ctx); err != nil {
		t.repo.restore(snap)
		return err
	}
	return nil
}

// fakeTransport records sent messages.
type fakeTransport struct {
	mu   sync.Mutex
	sent []mail.OTPMessage
	err  error
	// onSend runs before the send is recorded; a non-nil result fails the send.
	onSend func(ctx context.Context) error
}

func (f *fakeTransport) SendOTP(ctx context.Context, msg mail.OTPMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSend != nil {
		if err := f.onSend(ctx); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) last() mail.OTPMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return mail.OTPMessage{}
	}
	return f.sent[len(f.sent)-1]
}

var errStore = errors.New("store unavailable")
