/*
Package tracing provides lightweight request tracing for the lifecycle host.

# Overview

A trace follows one admin request from the HTTP layer into the controller
loop. The controller opens a child span for every queue drain it performs
on behalf of that request, tagged with the number of events processed and
the number of records still postponed, and annotated with each event.

# Usage

	tracer := tracing.New("lifecycle", logger, tracing.WithSlowThreshold(250*time.Millisecond))
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Traces use HTTP headers for propagation:
- X-Trace-ID: identifier for the entire request flow
- X-Span-ID: identifier for the current operation

Completed spans are buffered (1000 spans by default) and logged by a
collector goroutine: errors at error level, spans over the slow threshold
at info, the rest at debug. A full buffer drops spans and counts them.
Close flushes the buffer.
*/
package tracing
