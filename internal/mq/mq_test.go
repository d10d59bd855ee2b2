package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/librarium/usermanagement/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	closed  bool
	err     error
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.channel, f.data, f.attrs = channel, data, attrs
	return "id-1", nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestMQ_DelegatesToBackend(t *testing.T) {
	backend := &fakeBackend{}
	q := New(backend)

	id, err := q.Publish(context.Background(), "account.registered", []byte(`{}`), map[string]string{"event_type": "account.registered"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, "account.registered", backend.channel)
	assert.Equal(t, "account.registered", backend.attrs["event_type"])

	require.NoError(t, q.Close())
	assert.True(t, backend.closed)
}

func TestMQ_PropagatesErrors(t *testing.T) {
	q := New(&fakeBackend{err: errors.New("broker down")})

	_, err := q.Publish(context.Background(), "account.deleted", nil, nil)
	require.EqualError(t, err, "broker down")
}

func TestOpen_Disabled(t *testing.T) {
	q, err := Open(context.Background(), config.MQConfig{Backend: config.MQBackendNone})
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestOpen_RequiresBackendSettings(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: config.MQBackendRabbitMQ})
	require.ErrorContains(t, err, "rabbitmq url is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: config.MQBackendPubSub})
	require.ErrorContains(t, err, "pubsub project id is required")

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	require.Error(t, err)
}
