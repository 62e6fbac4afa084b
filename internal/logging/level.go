package logging

import (
	"context"
	"log/slog"
	"strings"
)

// LevelRecommendation sits between info and warn. Records at this level
// carry operator guidance such as the command that would fix a check.
const LevelRecommendation = slog.Level(2)

// Recommend logs msg at LevelRecommendation.
func Recommend(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), LevelRecommendation, msg, args...)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "recommendation", "recommend":
		return LevelRecommendation
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VerbosityLevel maps the repeatable -v flag to a console level. With no
// flag only warnings and errors reach the console.
func VerbosityLevel(verbose int, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelError + 4
	case verbose <= 0:
		return slog.LevelWarn
	case verbose == 1:
		return LevelRecommendation
	case verbose == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func levelName(l slog.Level) string {
	if l == LevelRecommendation {
		return "RECOMMENDATION"
	}
	return l.String()
}

// replaceLevel renders LevelRecommendation by name instead of "INFO+2".
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelName(l))
		}
	}
	return a
}
