package saga

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "skylane.saga"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func sagaAttrs(run *Run) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("saga.id", run.ID),
		attribute.String("saga.workflow", run.Workflow),
	}
}

func stepAttrs(run *Run, step string) []attribute.KeyValue {
	return append(sagaAttrs(run), attribute.String("saga.step", step))
}
