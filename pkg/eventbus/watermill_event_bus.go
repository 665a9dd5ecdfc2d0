package eventbus

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/otelhelper"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
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

	// Propagate the trace context through the message metadata so
	// subscribers continue the publisher's trace.
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		msg.Metadata.Set(k, v)
	}

	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	tracer := otel.Tracer("weft-eventbus")

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			carrier := propagation.MapCarrier{}
			for k, v := range msg.Metadata {
				carrier[k] = v
			}

			msgCtx := otel.GetTextMapPropagator().Extract(ctx, carrier)

			traceCtx, span := otelhelper.StartSpan(msgCtx, tracer, "eventbus.consume",
				attribute.String("event.type", string(eventType)),
			)

			event := newEventPayload(eventType)
			if event == nil {
				otelhelper.SetError(span, errors.New("unknown event type"))
				span.End()
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			err = handler(traceCtx, event)
			if err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			span.End()
			msg.Ack()
		}
	}()

	return nil
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

// newEventPayload returns a zero value of the concrete event struct for the
// given type, or nil for unknown types.
func newEventPayload(eventType events.EventType) any {
	switch eventType {
	case events.IntegrationRegisteredEvent:
		return &events.IntegrationRegistered{}
	case events.IntegrationUnregisteredEvent:
		return &events.IntegrationUnregistered{}
	case events.IntegrationStateUpdatedEvent:
		return &events.IntegrationStateUpdated{}
	case events.IntegrationHealthChangedEvent:
		return &events.IntegrationHealthChanged{}
	case events.WorkflowRegisteredEvent:
		return &events.WorkflowRegistered{}
	case events.RouteRegisteredEvent:
		return &events.RouteRegistered{}
	case events.ExecutionQueuedEvent:
		return &events.ExecutionQueued{}
	case events.ExecutionStartedEvent:
		return &events.ExecutionStarted{}
	case events.ExecutionCompletedEvent:
		return &events.ExecutionCompleted{}
	case events.ExecutionFailedEvent:
		return &events.ExecutionFailed{}
	case events.ExecutionRetryingEvent:
		return &events.ExecutionRetrying{}
	case events.ExecutionCancelledEvent:
		return &events.ExecutionCancelled{}
	case events.ExecutionPausedEvent:
		return &events.ExecutionPaused{}
	case events.ExecutionResumedEvent:
		return &events.ExecutionResumed{}
	case events.StepStartedEvent:
		return &events.StepStarted{}
	case events.StepCompletedEvent:
		return &events.StepCompleted{}
	case events.StepFailedEvent:
		return &events.StepFailed{}
	case events.IntegrationActionCompletedEvent:
		return &events.IntegrationActionCompleted{}
	case events.AITaskCompletedEvent:
		return &events.AITaskCompleted{}
	case events.BranchEvaluatedEvent:
		return &events.BranchEvaluated{}
	default:
		return nil
	}
}
