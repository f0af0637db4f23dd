package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"
)

// MockNATSClient is an in-memory stand-in for natsclient.Client's Publish and
// Subscribe. Subscribers are called synchronously from Publish, on exact
// subject match only. Safe for concurrent use.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func(context.Context, []byte)
	closed        bool

	failures int
	failErr  error
	attempts int
}

// NewMockNATSClient creates a new mock NATS client
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func(context.Context, []byte)),
	}
}

// FailNext makes the next n Publish calls return err without recording
func (c *MockNATSClient) FailNext(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = n
	c.failErr = err
}

// Publish records data on subject and calls its subscribers
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.Lock()
	c.attempts++

	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.failures > 0 {
		c.failures--
		err := c.failErr
		c.mu.Unlock()
		return err
	}

	c.messages[subject] = append(c.messages[subject], append([]byte(nil), data...))
	handlers := slices.Clone(c.subscriptions[subject])
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, data)
	}
	return nil
}

// Subscribe registers handler for subject
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// GetMessages returns a copy of every message published on subject
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	return append([][]byte(nil), msgs...)
}

// GetMessageCount returns the number of messages on a subject
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Subjects returns every subject with at least one message, sorted
func (c *MockNATSClient) Subjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subjects := make([]string, 0, len(c.messages))
	for s := range c.messages {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// PublishAttempts counts every Publish call, failed ones included
func (c *MockNATSClient) PublishAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// ClearAll forgets all recorded messages
func (c *MockNATSClient) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make(map[string][][]byte)
}

// Close makes later Publish and Subscribe calls fail
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsClosed returns whether the client is closed
func (c *MockNATSClient) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// WaitForMessage waits for a message on subject and returns the latest one
func WaitForMessage(t testing.TB, client *MockNATSClient, subject string, timeout time.Duration) []byte {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if messages := client.GetMessages(subject); len(messages) > 0 {
			return messages[len(messages)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for message on subject %s", subject)
	return nil
}

// WaitForMessageCount waits until subject has at least count messages
func WaitForMessageCount(t testing.TB, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.GetMessageCount(subject) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
		count, subject, client.GetMessageCount(subject))
}

// AssertNoMessages fails if anything was published on subject
func AssertNoMessages(t testing.TB, client *MockNATSClient, subject string) {
	t.Helper()
	if n := client.GetMessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
