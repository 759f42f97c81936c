package obs

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragforge/internal/observability"
)

// JSONLogger adapts the process-wide zerolog logger (configured once via
// observability.InitLogger) to the narrow Info/Error/Debug surface
// internal/rag/service.Logger expects. Field values are redacted before
// they reach the sink, since pipeline error fields sometimes carry a raw
// upstream response body that may still contain an API key.
type JSONLogger struct{}

func (l *JSONLogger) emit(evt *zerolog.Event, msg string, fields map[string]any) {
	if len(fields) > 0 {
		evt = evt.RawJSON("fields", redactFields(fields))
	}
	evt.Msg(msg)
}

func redactFields(fields map[string]any) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		return json.RawMessage("{}")
	}
	return observability.RedactJSON(raw)
}

func (l *JSONLogger) Info(msg string, fields map[string]any)  { l.emit(log.Info(), msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]any) { l.emit(log.Error(), msg, fields) }
func (l *JSONLogger) Debug(msg string, fields map[string]any) { l.emit(log.Debug(), msg, fields) }
