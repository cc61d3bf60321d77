package mq

import (
	"context"
	"encoding/json"

	"github.com/gardawira/twofa/internal/pkg/instrument"
	"github.com/gardawira/twofa/internal/pkg/messaging"
	"github.com/gardawira/twofa/internal/shared/event"
	"github.com/gardawira/twofa/internal/twofactor/usecase"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishTwoFactorEnabled(ctx context.Context, msg usecase.TwoFactorEnabledEvent) error {
	ctx, span := m.ins.Tracer("twofactor.outbound.mq").Start(ctx, "PublishTwoFactorEnabled")
	defer span.End()

	body, err := json.Marshal(event.TwoFactorEnabledMessage{
		UserID:    msg.UserID,
		Method:    msg.Method.String(),
		EnabledAt: msg.EnabledAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.TwoFactorEnabledDestination, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Messaging) PublishTwoFactorDisabled(ctx context.Context, msg usecase.TwoFactorDisabledEvent) error {
	ctx, span := m.ins.Tracer("twofactor.outbound.mq").Start(ctx, "PublishTwoFactorDisabled")
	defer span.End()

	body, err := json.Marshal(event.TwoFactorDisabledMessage{
		UserID:     msg.UserID,
		DisabledAt: msg.DisabledAt.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.TwoFactorDisabledDestination, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
