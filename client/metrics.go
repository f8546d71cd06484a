package client

import "github.com/rs/zerolog"

// PacketMetrics describes one datagram for metric accounting.
type PacketMetrics struct {
	Bytes  int
	InBand bool
}

// MetricSink receives per-packet and latency measurements from the
// engine. Implementations must be cheap; calls happen on the network
// tick.
type MetricSink interface {
	OnIncomingPacket(pkt PacketMetrics)
	OnOutgoingPacket(pkt PacketMetrics)
	OnPingResult(ms int64)
	OnRouteDelayResult(ms int64)
}

// PresenceSink receives session presence updates suitable for a
// rich-presence integration.
type PresenceSink interface {
	SetTemplate(template string)
	SetValue(index int, value string)
	SetConnectString(connect string)
}

type noopMetricSink struct{}

func (noopMetricSink) OnIncomingPacket(PacketMetrics) {}
func (noopMetricSink) OnOutgoingPacket(PacketMetrics) {}
func (noopMetricSink) OnPingResult(int64)             {}
func (noopMetricSink) OnRouteDelayResult(int64)       {}

// NoopMetricSink discards all measurements.
func NoopMetricSink() MetricSink {
	return noopMetricSink{}
}

type noopPresenceSink struct{}

func (noopPresenceSink) SetTemplate(string)      {}
func (noopPresenceSink) SetValue(int, string)    {}
func (noopPresenceSink) SetConnectString(string) {}

// NoopPresenceSink discards all presence updates.
func NoopPresenceSink() PresenceSink {
	return noopPresenceSink{}
}

// LogMetricSink traces measurements through a zerolog logger. Useful
// for debugging; trace level keeps it silent in normal operation.
type LogMetricSink struct {
	logger zerolog.Logger
}

// NewLogMetricSink returns a MetricSink writing trace events to logger.
func NewLogMetricSink(logger zerolog.Logger) *LogMetricSink {
	return &LogMetricSink{logger: logger.With().Str("component", "metrics").Logger()}
}

func (s *LogMetricSink) OnIncomingPacket(pkt PacketMetrics) {
	s.logger.Trace().Int("bytes", pkt.Bytes).Bool("in_band", pkt.InBand).Msg("packet in")
}

func (s *LogMetricSink) OnOutgoingPacket(pkt PacketMetrics) {
	s.logger.Trace().Int("bytes", pkt.Bytes).Bool("in_band", pkt.InBand).Msg("packet out")
}

func (s *LogMetricSink) OnPingResult(ms int64) {
	s.logger.Trace().Int64("ping_ms", ms).Msg("ping sample")
}

func (s *LogMetricSink) OnRouteDelayResult(ms int64) {
	s.logger.Trace().Int64("delay_ms", ms).Msg("route delay sample")
}
