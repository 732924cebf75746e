// Package instrumented provides an ODM driver decorator which records
// OpenTelemetry traces and metrics for every operation.
package instrumented

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rainycape/odm/log"
	"github.com/rainycape/odm/odm/driver"
)

// InstrumentationName is the name used for the tracer and the meter.
const InstrumentationName = "github.com/rainycape/odm/odm/driver"

var (
	readDirection  = metric.WithAttributes(attribute.String("direction", "read"))
	writeDirection = metric.WithAttributes(attribute.String("direction", "write"))
)

// Driver is a decorator that adds instrumentation to a [driver.Driver].
type Driver struct {
	Next driver.Driver

	tracer     trace.Tracer
	operations metric.Int64Counter
	errors     metric.Int64Counter
	dataIO     metric.Int64Counter
	duration   metric.Float64Histogram
}

// New returns a Driver wrapping next. Either provider might be nil,
// in which case the corresponding global otel provider is used.
func New(next driver.Driver, tp trace.TracerProvider, mp metric.MeterProvider) (*Driver, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)
	d := &Driver{
		Next:   next,
		tracer: tp.Tracer(InstrumentationName),
	}
	var err error
	if d.operations, err = meter.Int64Counter(
		"odm.operations",
		metric.WithDescription("The number of operations performed by the driver."),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, err
	}
	if d.errors, err = meter.Int64Counter(
		"odm.errors",
		metric.WithDescription("The number of driver operations which failed."),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if d.dataIO, err = meter.Int64Counter(
		"odm.io",
		metric.WithDescription("The cumulative size of the documents that have been read and written."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if d.duration, err = meter.Float64Histogram(
		"odm.duration",
		metric.WithDescription("The duration of the driver operations."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return d, nil
}

type operation struct {
	d     *Driver
	name  string
	span  trace.Span
	start time.Time
}

func (d *Driver) start(ctx context.Context, name string, m driver.Model, attrs ...attribute.KeyValue) (context.Context, *operation) {
	if m != nil {
		attrs = append(attrs, attribute.String("odm.collection", m.Collection()))
	}
	ctx, span := d.tracer.Start(ctx, "odm."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &operation{d: d, name: name, span: span, start: time.Now()}
}

func (op *operation) end(ctx context.Context, err error) {
	opAttr := metric.WithAttributes(attribute.String("operation", op.name))
	op.d.operations.Add(ctx, 1, opAttr)
	op.d.duration.Record(ctx, time.Since(op.start).Seconds(), opAttr)
	if err != nil {
		op.d.errors.Add(ctx, 1, opAttr)
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	op.span.End()
}

func (d *Driver) Check(ctx context.Context) (err error) {
	ctx, op := d.start(ctx, "check", nil)
	defer func() { op.end(ctx, err) }()
	return d.Next.Check(ctx)
}

func (d *Driver) Initialize(ctx context.Context, ms []driver.Model) (err error) {
	ctx, op := d.start(ctx, "initialize", nil, attribute.Int("odm.models", len(ms)))
	defer func() { op.end(ctx, err) }()
	return d.Next.Initialize(ctx, ms)
}

func (d *Driver) Get(ctx context.Context, m driver.Model, id string) (data []byte, err error) {
	ctx, op := d.start(ctx, "get", m, attribute.String("odm.id", id))
	defer func() { op.end(ctx, err) }()
	data, err = d.Next.Get(ctx, m, id)
	if err == nil {
		d.dataIO.Add(ctx, int64(len(data)), readDirection)
	}
	return data, err
}

func (d *Driver) Insert(ctx context.Context, m driver.Model, id string, data []byte) (err error) {
	ctx, op := d.start(ctx, "insert", m, attribute.String("odm.id", id))
	defer func() { op.end(ctx, err) }()
	if err = d.Next.Insert(ctx, m, id, data); err == nil {
		d.dataIO.Add(ctx, int64(len(data)), writeDirection)
	}
	return err
}

func (d *Driver) InsertMany(ctx context.Context, m driver.Model, items []driver.Item) (err error) {
	ctx, op := d.start(ctx, "insert_many", m, attribute.Int("odm.documents", len(items)))
	defer func() { op.end(ctx, err) }()
	if err = d.Next.InsertMany(ctx, m, items); err == nil {
		var size int
		for _, v := range items {
			size += len(v.Data)
		}
		d.dataIO.Add(ctx, int64(size), writeDirection)
	}
	return err
}

func (d *Driver) Update(ctx context.Context, m driver.Model, id string, data []byte) (updated bool, err error) {
	ctx, op := d.start(ctx, "update", m, attribute.String("odm.id", id))
	defer func() { op.end(ctx, err) }()
	updated, err = d.Next.Update(ctx, m, id, data)
	op.span.SetAttributes(attribute.Bool("odm.updated", updated))
	if updated {
		d.dataIO.Add(ctx, int64(len(data)), writeDirection)
	}
	return updated, err
}

func (d *Driver) Delete(ctx context.Context, m driver.Model, id string) (deleted bool, err error) {
	ctx, op := d.start(ctx, "delete", m, attribute.String("odm.id", id))
	defer func() { op.end(ctx, err) }()
	deleted, err = d.Next.Delete(ctx, m, id)
	op.span.SetAttributes(attribute.Bool("odm.deleted", deleted))
	return deleted, err
}

func (d *Driver) Count(ctx context.Context, m driver.Model) (count uint64, err error) {
	ctx, op := d.start(ctx, "count", m)
	defer func() { op.end(ctx, err) }()
	count, err = d.Next.Count(ctx, m)
	op.span.SetAttributes(attribute.Int64("odm.count", int64(count)))
	return count, err
}

func (d *Driver) Range(ctx context.Context, m driver.Model, fn driver.RangeFunc) (err error) {
	ctx, op := d.start(ctx, "range", m)
	defer func() { op.end(ctx, err) }()
	var documents, size int64
	err = d.Next.Range(ctx, m, func(ctx context.Context, id string, data []byte) (bool, error) {
		documents++
		size += int64(len(data))
		return fn(ctx, id, data)
	})
	op.span.SetAttributes(attribute.Int64("odm.documents", documents))
	d.dataIO.Add(ctx, size, readDirection)
	return err
}

func (d *Driver) Capabilities() driver.Capability {
	return d.Next.Capabilities()
}

func (d *Driver) Close() error {
	return d.Next.Close()
}

// SetLogger forwards the logger to the wrapped driver, if it
// supports logging.
func (d *Driver) SetLogger(logger *log.Logger) {
	if l, ok := d.Next.(interface{ SetLogger(*log.Logger) }); ok {
		l.SetLogger(logger)
	}
}

// Unwrap returns the wrapped driver.
func (d *Driver) Unwrap() driver.Driver {
	return d.Next
}
