package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/donor-finder/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestPublishRegistration(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d := models.Donor{ID: "d-1", Name: "Ananya", BloodType: models.OPos, City: "Mumbai", Available: true, CreatedAt: created}

	require.NoError(t, p.PublishRegistration(context.Background(), d))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("d-1"), w.msgs[0].Key)

	var ev models.RegistrationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "Ananya", ev.Donor.Name)
	assert.True(t, created.Equal(ev.RegisteredAt))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishRegistrationError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")})
	err := p.PublishRegistration(context.Background(), models.Donor{ID: "x"})
	assert.ErrorContains(t, err, "broker down")
}
