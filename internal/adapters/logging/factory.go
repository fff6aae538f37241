package logging

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/theatre/internal/ports"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatZap  = "zap"
	FormatNone = "none"
)

// New returns the logger for a configured format.
func New(format string, level ports.Level, w io.Writer) (ports.Logger, error) {
	switch format {
	case "", FormatText:
		return NewConsoleLogger(WithOutput(w), WithLevel(level), WithTimestamp(false)), nil
	case FormatJSON:
		return NewConsoleLogger(WithOutput(w), WithLevel(level), WithJSONFormat(true)), nil
	case FormatZap:
		return NewZapLoggerTo(w, level), nil
	case FormatNone:
		l := NewNopLogger()
		l.SetLevel(level)
		return l, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
