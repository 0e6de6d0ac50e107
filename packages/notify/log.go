package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes changes to a zerolog logger
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier writing to logger
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("notifier", "log").Logger()}
}

// Name returns the name of the notifier
func (l *LogNotifier) Name() string {
	return "log"
}

// Notify logs the change. Failures are logged at error level, changes at
// warn and everything else at info. The target is added as a field.
func (l *LogNotifier) Notify(_ context.Context, target string, change *Change) error {
	var event *zerolog.Event
	switch {
	case change.Failed():
		event = l.logger.Error().Str("error", change.Error)
	case change.Changed():
		event = l.logger.Warn()
	default:
		event = l.logger.Info()
	}

	if target != "" {
		event = event.Str("target", target)
	}

	dict := zerolog.Dict()
	for _, d := range change.Diff {
		dict = dict.Str(d.Item, d.Old+" -> "+d.New)
	}

	event.
		Str("job", change.Job).
		Str("url", change.URL).
		Time("at", change.Time).
		Dict("diff", dict).
		Interface("values", change.Values).
		Msg(change.Title())
	return nil
}
