package referral

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps referral state in process memory, for dev mode and
// tests.
type MemoryStore struct {
	mu       sync.Mutex
	codes    map[string]string   // code -> referrer id
	rewarded map[string]struct{} // code + "\x00" + referred id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:    make(map[string]string),
		rewarded: make(map[string]struct{}),
	}
}

func (m *MemoryStore) RegisterCode(ctx context.Context, code, referrerID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	referrerID = strings.TrimSpace(referrerID)
	if code == "" || referrerID == "" {
		return ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.codes[code]; exists {
		return ErrCodeTaken
	}
	m.codes[code] = referrerID
	return nil
}

func (m *MemoryStore) ReferrerByCode(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	code = strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	defer m.mu.Unlock()
	referrerID, ok := m.codes[code]
	if !ok {
		return "", ErrCodeNotFound
	}
	return referrerID, nil
}

func (m *MemoryStore) MarkRewarded(ctx context.Context, code, referredID string, _ time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	referredID = strings.TrimSpace(referredID)
	if code == "" || referredID == "" {
		return false, ErrInvalidInput
	}

	key := code + "\x00" + referredID

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.rewarded[key]; done {
		return false, nil
	}
	m.rewarded[key] = struct{}{}
	return true, nil
}
