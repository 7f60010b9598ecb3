package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// slogLogger adapts *slog.Logger to badger.Logger. Info and debug output is
// dropped; BadgerDB is chatty at those levels.
type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) Errorf(f string, v ...any)   { l.emit(slog.LevelError, f, v) }
func (l slogLogger) Warningf(f string, v ...any) { l.emit(slog.LevelWarn, f, v) }
func (slogLogger) Infof(string, ...any)          {}
func (slogLogger) Debugf(string, ...any)         {}

func (l slogLogger) emit(level slog.Level, f string, v []any) {
	if l.log == nil {
		return
	}
	msg := strings.TrimSpace(fmt.Sprintf(f, v...))
	l.log.Log(context.Background(), level, msg, slog.String("component", "badger"))
}
