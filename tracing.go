package vnc

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amitbet/vncclone"

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		return otel.Tracer(tracerName)
	}
	return tp.Tracer(tracerName)
}

// startUpdateSpan opens the span covering one framebuffer update.
func (c *ClientConn) startUpdateSpan(numRects uint16) {
	_, c.updateSpan = c.tracer.Start(context.Background(), "vnc.FramebufferUpdate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("vnc.rects", int(numRects)),
			attribute.Bool("vnc.continuous", c.sched.continuous),
		),
	)
}

func (c *ClientConn) endUpdateSpan(err error) {
	if c.updateSpan == nil {
		return
	}
	if err != nil {
		c.updateSpan.RecordError(err)
		c.updateSpan.SetStatus(codes.Error, err.Error())
	}
	c.updateSpan.SetAttributes(attribute.Int64("vnc.frame", int64(c.frameCount)))
	c.updateSpan.End()
	c.updateSpan = nil
}

// spanEvent annotates the current update span, if any.
func (c *ClientConn) spanEvent(name string, attrs ...attribute.KeyValue) {
	if c.updateSpan == nil {
		return
	}
	c.updateSpan.AddEvent(name, trace.WithAttributes(attrs...))
}
