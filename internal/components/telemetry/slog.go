package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strconv"
)

// InitSlog points the default slog logger at stderr, debug records are kept
// only when verbose is set.
func InitSlog(verbose bool) {
	InitSlogTo(os.Stderr, verbose)
}

// InitSlogTo is InitSlog with an explicit destination.
func InitSlogTo(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// SlogAPI reports through the default slog logger.
type SlogAPI struct{}

// attrs turns report params into slog key/value pairs. Errors are logged
// under "err", everything else is numbered by position.
func (SlogAPI) attrs(id string, params []any) []any {
	out := make([]any, 0, 2+len(params)*2)
	if id != "" {
		out = append(out, "id", id)
	}
	for i, p := range params {
		if err, ok := p.(error); ok {
			out = append(out, "err", err.Error())
			continue
		}
		out = append(out, "p"+strconv.Itoa(i), p)
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	slog.Error("broken", s.attrs(id, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	slog.Warn("warning", s.attrs(id, params)...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	slog.Debug(message, s.attrs("", params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", slog.String("id", id), slog.Int64("value", count))
}
