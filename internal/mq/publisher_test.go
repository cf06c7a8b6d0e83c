package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.PublishJSON(context.Background(), KeyBookingConfirmed, map[string]string{"order_number": "ORD-1"}))
	require.NoError(t, r.PublishJSON(context.Background(), KeyPaymentFailed, map[string]string{"reference": "PAY-1"}))

	assert.Equal(t, []string{KeyBookingConfirmed, KeyPaymentFailed}, r.Keys())
	assert.JSONEq(t, `{"order_number":"ORD-1"}`, string(r.Events[0].Body))
}

func TestRecorderRejectsUnmarshalable(t *testing.T) {
	var r Recorder
	err := r.PublishJSON(context.Background(), "k", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, r.Events)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishJSON(context.Background(), "k", nil))
}
