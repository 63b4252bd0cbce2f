package eventbus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/planstudio/flowhistory/pkg/events"
	"github.com/planstudio/flowhistory/pkg/otelhelper"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	tracer        trace.Tracer
}

type WatermillOption func(*WatermillEventBus)

// WithTracer enables a consume span per dispatched message. A nil tracer
// leaves the bus untraced.
func WithTracer(tracer trace.Tracer) WatermillOption {
	return func(eb *WatermillEventBus) {
		eb.tracer = tracer
	}
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...WatermillOption) EventBus {
	eb := &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	msgCtx, span := eb.startSpan(ctx, msg, eventType)
	defer span.End()

	handler, exists := eb.subscriptions[eventType]
	if !exists {
		msg.Ack()

		return
	}

	var event any

	switch eventType {
	case events.ExecutionIngestedEvent:
		event = &events.ExecutionIngested{}
	case events.ExecutionFinishedEvent:
		event = &events.ExecutionFinished{}
	case events.AlertTriggeredEvent:
		event = &events.AlertTriggered{}
	default:
		otelhelper.SetError(span, errors.New("unknown event type"))
		msg.Nack()

		return
	}

	err := json.Unmarshal(msg.Payload, event)
	if err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	err = handler(msgCtx, event)
	if err != nil {
		otelhelper.SetError(span, err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) startSpan(ctx context.Context, msg *message.Message, eventType events.EventType) (context.Context, trace.Span) {
	if eb.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return otelhelper.StartSpan(ctx, eb.tracer, "eventbus consume",
		attribute.String(otelhelper.EventIDKey, msg.Metadata.Get(events.EventMetadataKey)),
		attribute.String("event.type", string(eventType)),
	)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
