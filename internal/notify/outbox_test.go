package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
)

func TestOutboxMessageRoundTrip(t *testing.T) {
	id := ulid.Make().String()
	values, err := encodeMessage(id, FnAdminOrder, AdminOrderBody{Details: AdminOrder{OrderID: "o-1", ProductPrice: "10.00"}})
	require.NoError(t, err)
	assert.Equal(t, id, values["id"])

	// redis hands stream fields back as strings
	m, err := decodeMessage(values)
	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, FnAdminOrder, m.Function)
	assert.JSONEq(t, `{"orderDetails":{"orderId":"o-1","productName":"","productPrice":"10.00","customerName":"","customerEmail":""}}`, string(m.Body))
}

func TestDecodeMessageRejectsBadFields(t *testing.T) {
	_, err := decodeMessage(map[string]any{"function": "f", "body": "{}"})
	assert.Error(t, err)

	_, err = decodeMessage(map[string]any{"id": "1", "function": "f", "body": "{not json"})
	assert.Error(t, err)

	_, err = decodeMessage(map[string]any{"id": "1", "function": 7, "body": "{}"})
	assert.Error(t, err)

	m, err := decodeMessage(map[string]any{"id": []byte("1"), "function": "f", "body": []byte(`{"a":1}`)})
	require.NoError(t, err)
	assert.Equal(t, "1", m.ID)
}

type countingSender struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string
}

func (s *countingSender) Send(_ context.Context, function string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[function]++
	if function == s.fail {
		return errors.New("function returned 500")
	}
	return nil
}

func (s *countingSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *countingSender) count(function string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[function]
}

const (
	testStream = "notify:test"
	testGroup  = "relay"
)

func newTestRedis(t *testing.T) *rd.Client {
	t.Helper()
	applog.SetOutput(io.Discard)
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// runRelay starts the relay and returns a func that stops it and waits.
func runRelay(t *testing.T, r *Relay) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("relay did not stop")
		}
	}
}

func assertStreamDrained(t *testing.T, rdb *rd.Client) {
	t.Helper()
	ctx := context.Background()
	pending, err := rdb.XPending(ctx, testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count, "pending entries left behind")
	n, err := rdb.XLen(ctx, testStream).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "stream entries left behind")
}

func TestRelayDeliversOnceAndAcksFailures(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	out := NewOutbox(rdb, testStream)
	out.Dispatch(ctx, FnAdminOrder, AdminOrderBody{Details: AdminOrder{OrderID: "o-1"}})
	out.Dispatch(ctx, FnClientOrderUpdate, OrderUpdateBody{Details: OrderUpdate{OrderID: "o-1"}})

	sender := &countingSender{fail: FnClientOrderUpdate}
	stop := runRelay(t, NewRelay(rdb, sender, testStream, testGroup, "c1"))
	require.Eventually(t, func() bool { return sender.total() >= 2 }, 5*time.Second, 20*time.Millisecond)
	// give a redelivery the chance to show up
	time.Sleep(200 * time.Millisecond)
	stop()

	assert.Equal(t, 1, sender.count(FnAdminOrder))
	assert.Equal(t, 1, sender.count(FnClientOrderUpdate), "failed sends are not retried")
	assertStreamDrained(t, rdb)
}

func TestRelayPicksUpPendingEntriesFirst(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.XGroupCreateMkStream(ctx, testStream, testGroup, "0").Err())

	NewOutbox(rdb, testStream).Dispatch(ctx, FnAdminOrder, AdminOrderBody{Details: AdminOrder{OrderID: "o-2"}})

	// a previous run read the entry and died before acknowledging it
	streams, err := rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group: testGroup, Consumer: "c1", Streams: []string{testStream, ">"}, Count: 1,
	}).Result()
	require.NoError(t, err)
	require.Len(t, streams[0].Messages, 1)
	pending, err := rdb.XPending(ctx, testStream, testGroup).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, pending.Count)

	sender := &countingSender{}
	stop := runRelay(t, NewRelay(rdb, sender, testStream, testGroup, "c1"))
	require.Eventually(t, func() bool { return sender.total() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	stop()

	assert.Equal(t, 1, sender.count(FnAdminOrder))
	assertStreamDrained(t, rdb)
}

func TestRelaySkipsUndecodableEntries(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"id": "bad", "function": FnAdminOrder, "body": "{not json"},
	}).Err())
	NewOutbox(rdb, testStream).Dispatch(ctx, FnAdminOrder, AdminOrderBody{Details: AdminOrder{OrderID: "o-3"}})

	sender := &countingSender{}
	stop := runRelay(t, NewRelay(rdb, sender, testStream, testGroup, "c1"))
	require.Eventually(t, func() bool { return sender.total() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	stop()

	assert.Equal(t, 1, sender.total())
	assertStreamDrained(t, rdb)
}
