package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// InjectTraceContext adds the propagation headers of ctx to a Kafka
// message's headers, replacing any header with the same key.
func InjectTraceContext(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := headerCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier
}

type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string((*c)[i].Value)
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		(*c)[i].Value = []byte(value)
		return
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}

func (c *headerCarrier) index(key string) int {
	for i, h := range *c {
		if h.Key == key {
			return i
		}
	}
	return -1
}
