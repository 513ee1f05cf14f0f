package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a flow or a step of one.
//
//	ctx, span := telemetry.StartSpan(ctx, "gridlogin/services/flow", "flow.Register",
//	    attribute.String(telemetry.AttrFlowID, flowID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span, e.g. a flow state transition.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys
const (
	AttrFlowID        = "flow.id"
	AttrFlowName      = "flow.name"
	AttrFlowState     = "flow.state"
	AttrOrgID         = "zitadel.org_id"
	AttrUserID        = "zitadel.user_id"
	AttrSessionID     = "zitadel.session_id"
	AttrAuthRequestID = "oidc.auth_request_id"
	AttrActionRule    = "action.rule"
	AttrPasskeyID     = "passkey.id"
	AttrIDPID         = "idp.id"
)
