package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/donor-finder/internal/geo"
	"github.com/example/donor-finder/internal/logging"
	"github.com/example/donor-finder/internal/models"
)

// fakeIndex implements PositionWriter for tests
type fakeIndex struct {
	fail   int // number of times to fail Upsert before succeeding
	calls  int
	last   geo.Point
	lastID string
}

func (f *fakeIndex) Upsert(ctx context.Context, id string, p geo.Point) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("geoadd fail")
	}
	f.last, f.lastID = p, id
	return nil
}

func donorAt(lat, lng float64) models.Donor {
	return models.Donor{ID: "d1", Name: "Priya Patel", BloodType: models.BPos, City: "Thane", Available: true, Lat: &lat, Lng: &lng}
}

func event(t *testing.T, d models.Donor) []byte {
	t.Helper()
	b, err := json.Marshal(models.RegistrationEvent{Donor: d, RegisteredAt: time.Now()})
	require.NoError(t, err)
	return b
}

func TestUpdateIndexWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeIndex{fail: 2}
	start := time.Now()
	err := updateIndexWithRetry(context.Background(), f, "d1", geo.Point{Lat: 19.2183, Lng: 72.9781}, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, "d1", f.lastID)
	assert.Equal(t, geo.Point{Lat: 19.2183, Lng: 72.9781}, f.last)
}

func TestUpdateIndexWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeIndex{fail: 5}
	err := updateIndexWithRetry(context.Background(), f, "d1", geo.Point{Lat: 1, Lng: 2}, 3, 5*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, f.calls)
}

func TestUpdateIndexWithRetry_StopsOnCancel(t *testing.T) {
	f := &fakeIndex{fail: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := updateIndexWithRetry(ctx, f, "d1", geo.Point{Lat: 1, Lng: 2}, 3, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}

func TestProcessMessage(t *testing.T) {
	noPos := donorAt(0, 0)
	noPos.Lat, noPos.Lng = nil, nil

	tests := []struct {
		name  string
		value []byte
		want  outcome
	}{
		{"indexed", event(t, donorAt(19.2183, 72.9781)), outcomeIndexed},
		{"zero position is indexed", event(t, donorAt(0, 0)), outcomeIndexed},
		{"no position", event(t, noPos), outcomeSkipped},
		{"out of range", event(t, donorAt(91, 0)), outcomeInvalid},
		{"missing id", event(t, models.Donor{Name: "x"}), outcomeInvalid},
		{"garbage", []byte("not json"), outcomeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeIndex{}
			res := processMessage(context.Background(), f, tt.value)
			assert.Equal(t, tt.want, res.outcome, res.err)
			if tt.want == outcomeIndexed {
				assert.Equal(t, 1, f.calls)
			} else {
				assert.Zero(t, f.calls)
			}
		})
	}
}

func TestProcessMessageReportsRedisFailure(t *testing.T) {
	f := &fakeIndex{fail: 10}
	res := processMessage(context.Background(), f, event(t, donorAt(1, 2)))
	assert.Equal(t, outcomeFailed, res.outcome)
	assert.Equal(t, "d1", res.donorID)
	assert.Error(t, res.err)
}

type sliceReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (s *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.msgs) == 0 {
		s.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func TestConsumeDrainsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		{Value: event(t, donorAt(19.0760, 72.8777))},
		{Value: []byte("{")},
		{Value: event(t, donorAt(18.5204, 73.8567))},
	}}
	f := &fakeIndex{}

	done := make(chan struct{})
	go func() {
		consume(ctx, r, f, logging.Discard())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after cancel")
	}
	assert.Equal(t, 2, f.calls)
}
