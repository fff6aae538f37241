package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: " INFO ", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "loud", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErr(t *testing.T) {
	t.Parallel()

	f := Err(errors.New("target busy"))
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "target busy", f.Value)
	assert.Nil(t, Err(nil).Value)
}

type stubLogger struct {
	level Level
}

func (s *stubLogger) Debug(context.Context, string, ...Field) {}
func (s *stubLogger) Info(context.Context, string, ...Field)  {}
func (s *stubLogger) Warn(context.Context, string, ...Field)  {}
func (s *stubLogger) Error(context.Context, string, ...Field) {}
func (s *stubLogger) With(...Field) Logger                    { return s }
func (s *stubLogger) Level() Level                            { return s.level }
func (s *stubLogger) SetLevel(level Level)                    { s.level = level }

func TestLoggerContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, LoggerFromContext(context.Background()))

	wrongType := context.WithValue(context.Background(), loggerKey{}, "surgeon")
	assert.Nil(t, LoggerFromContext(wrongType))

	first := &stubLogger{level: LevelDebug}
	second := &stubLogger{level: LevelError}
	ctx := ContextWithLogger(ContextWithLogger(context.Background(), first), second)

	got := LoggerFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, LevelError, got.Level())
}
