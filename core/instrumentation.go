package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-playback/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	bufferCounter, _ = meter.Int64Counter("ema.session.buffered_segments",
		metric.WithDescription("Buffered segments by provider"))
	playbackCounter, _ = meter.Int64Counter("ema.session.segment_playbacks",
		metric.WithDescription("Started segment playbacks by mechanism"))
)
