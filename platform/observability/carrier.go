package observability

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// headersCarrier адаптирует заголовки kafka-сообщения к propagation.TextMapCarrier
type headersCarrier struct {
	headers *[]kafka.Header
}

func (c headersCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headersCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headersCarrier) Keys() []string {
	out := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		out = append(out, h.Key)
	}
	return out
}

// InjectKafkaHeaders записывает trace context из ctx в заголовки сообщения
func InjectKafkaHeaders(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, headersCarrier{headers: &msg.Headers})
}

// ExtractKafkaHeaders восстанавливает trace context продюсера из заголовков сообщения
func ExtractKafkaHeaders(ctx context.Context, msg kafka.Message) context.Context {
	headers := msg.Headers
	return otel.GetTextMapPropagator().Extract(ctx, headersCarrier{headers: &headers})
}
