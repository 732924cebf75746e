package odm

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rainycape/odm/log"
	"github.com/rainycape/odm/odm/codec"
)

// Option configures an ODM created with New or Connect.
type Option func(*settings)

type settings struct {
	logger         *log.Logger
	codec          codec.Codec
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLogger sets the logger for the ODM and its driver.
func WithLogger(logger *log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithCodec sets the codec used for encoding documents, overriding
// the codec option in the database URL.
func WithCodec(c codec.Codec) Option {
	return func(s *settings) {
		s.codec = c
	}
}

// WithTracerProvider enables tracing of the driver operations
// using the given provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) {
		s.tracerProvider = tp
	}
}

// WithMeterProvider enables recording metrics about the driver
// operations using the given provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) {
		s.meterProvider = mp
	}
}
