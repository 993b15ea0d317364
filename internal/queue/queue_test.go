package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

func fastQueue() *InMemoryQueue {
	q := NewInMemoryQueue(nil)
	q.Backoff = time.Millisecond
	return q
}

func TestInMemoryQueuePublishWithoutSubscribers(t *testing.T) {
	q := fastQueue()
	assert.Error(t, q.Publish("nobody", 1))
}

func TestInMemoryQueueRetriesUntilSuccess(t *testing.T) {
	q := fastQueue()
	var attempts atomic.Int32
	require.NoError(t, q.Subscribe("t", func(payload any) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, q.Publish("t", "hello"))
	q.Wait()
	assert.EqualValues(t, 3, attempts.Load())
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	q := fastQueue()
	var attempts atomic.Int32
	require.NoError(t, q.Subscribe("t", func(payload any) error {
		attempts.Add(1)
		return errors.New("permanent")
	}))

	require.NoError(t, q.Publish("t", "hello"))
	q.Wait()
	assert.EqualValues(t, DefaultMaxRetries+1, attempts.Load())
}

func TestInMemoryQueueFanOut(t *testing.T) {
	q := fastQueue()
	var a, b atomic.Int32
	require.NoError(t, q.Subscribe("t", func(any) error { a.Add(1); return nil }))
	require.NoError(t, q.Subscribe("t", func(any) error { b.Add(1); return nil }))

	require.NoError(t, q.Publish("t", 1))
	require.NoError(t, q.Publish("t", 2))
	q.Wait()
	assert.EqualValues(t, 2, a.Load())
	assert.EqualValues(t, 2, b.Load())
}

type memoryStore struct {
	mu      sync.Mutex
	records map[int]model.OutcomeRecord
	fail    int
}

func (s *memoryStore) RecordOutcome(_ context.Context, rec model.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("db down")
	}
	if s.records == nil {
		s.records = map[int]model.OutcomeRecord{}
	}
	s.records[rec.Position] = rec
	return nil
}

func TestOutcomeSubscriberPersists(t *testing.T) {
	q := fastQueue()
	store := &memoryStore{fail: 1}
	require.NoError(t, StartOutcomeSubscriber(q, OutcomesTopic, store, nil))

	runID := uuid.New()
	rec := model.OutcomeRecord{RunID: runID, Position: 0, Numero: "1", Status: model.OutcomeStatusSent}
	body, err := json.Marshal(model.OutcomeRecord{RunID: runID, Position: 1, Numero: "2", Status: model.OutcomeStatusFailed})
	require.NoError(t, err)

	require.NoError(t, q.Publish(OutcomesTopic, rec))
	require.NoError(t, q.Publish(OutcomesTopic, body))
	require.NoError(t, q.Publish(OutcomesTopic, 42))
	q.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.records, 2)
	assert.Equal(t, "1", store.records[0].Numero)
	assert.Equal(t, model.OutcomeStatusFailed, store.records[1].Status)
	assert.Equal(t, runID, store.records[1].RunID)
}

// fakeChannel stands in for a broker channel.
type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error { return nil }

type ackRecorder struct {
	acked, nacked, requeued atomic.Int32
	done                    chan struct{}
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked.Add(1)
	a.done <- struct{}{}
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked.Add(1)
	if requeue {
		a.requeued.Add(1)
	}
	a.done <- struct{}{}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return nil }

func TestAMQPQueuePublishEncodesJSON(t *testing.T) {
	ch := &fakeChannel{}
	q := newAMQPQueue(ch, nil)

	require.NoError(t, q.Publish(OutcomesTopic, model.OutcomeRecord{Numero: "1"}))
	require.NoError(t, q.Publish(OutcomesTopic, []byte(`{"numero":"2"}`)))

	assert.Equal(t, []string{OutcomesTopic}, ch.declared)
	require.Len(t, ch.published, 2)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Contains(t, string(ch.published[0].Body), `"numero":"1"`)
	assert.Equal(t, `{"numero":"2"}`, string(ch.published[1].Body))
}

func TestAMQPQueueRetryHeader(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	q := newAMQPQueue(ch, nil)
	acks := &ackRecorder{done: make(chan struct{}, 4)}

	var calls atomic.Int32
	require.NoError(t, q.Subscribe("t", func(payload any) error {
		calls.Add(1)
		assert.IsType(t, []byte{}, payload)
		return errors.New("fail")
	}))

	ch.deliveries <- amqp.Delivery{Acknowledger: acks, Body: []byte("{}"), Headers: amqp.Table{retryHeader: int32(1)}}
	<-acks.done
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, Body: []byte("{}"), Headers: amqp.Table{retryHeader: int32(DefaultMaxRetries)}}
	<-acks.done
	close(ch.deliveries)

	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, acks.acked.Load())
	assert.EqualValues(t, 1, acks.nacked.Load())
	assert.Zero(t, acks.requeued.Load())

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.published, 1)
	assert.Equal(t, int32(2), ch.published[0].Headers[retryHeader])
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, int32(0), retryCount(nil))
	assert.Equal(t, int32(2), retryCount(amqp.Table{retryHeader: int64(2)}))
	assert.Equal(t, int32(3), retryCount(amqp.Table{retryHeader: 3}))
}
