package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithEventID(ctx, "spring")
	ctx = WithDrawID(ctx, "d-1")

	assert.Equal(t, []interface{}{"request_id", "req-1", "event_id", "spring", "draw_id", "d-1"}, GetLogFields(ctx))
	assert.Empty(t, GetLogFields(context.Background()))
}

func TestEarly(t *testing.T) {
	var buf bytes.Buffer
	prev := EarlyOutput
	EarlyOutput = &buf
	t.Cleanup(func() { EarlyOutput = prev })

	Early("failed to load config: %v", "no such file")
	assert.Equal(t, "raffle: failed to load config: no such file\n", buf.String())
}
