package logging

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// quietPaths are polled by health checks and scrapers and only logged on failure
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// Setup installs the process-wide logger. Console output is used for local
// development unless LOG_FORMAT=json; production always writes JSON.
func Setup(cfg *config.LoggingConfig, env string) {
	log.Logger = build(os.Stdout, cfg, env)
}

func build(w io.Writer, cfg *config.LoggingConfig, env string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if cfg.Format != "json" && env != "production" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().
		Timestamp().
		Str("service", "challengehive").
		Str("env", env).
		Logger()
}

// NewLogger returns the global logger tagged with a component name
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger emits one line per request, keyed by route template.
// The matched :id is logged separately as resource_id.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		if quietPaths[c.Request.URL.Path] && status < http.StatusInternalServerError {
			return
		}

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if id := c.Param("id"); id != "" {
			ev = ev.Str("resource_id", id)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("gin_errors", c.Errors.String())
		}

		ev.Str("request_id", c.GetString("request_id")).
			Str("user_email", c.GetString("user_email")).
			Str("user_role", c.GetString("user_role")).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(began)).
			Str("client_ip", c.ClientIP()).
			Int("bytes_out", c.Writer.Size()).
			Msg("request served")
	}
}

// PaymentLogEntry describes a checkout or confirmation event
type PaymentLogEntry struct {
	RequestID     string
	SessionID     string
	ContestID     string
	Email         string
	TransactionID string
	Status        string
	AmountMinor   int64
	Currency      string
}

// LogPayment logs a payment event
func LogPayment(entry *PaymentLogEntry) {
	log.Info().
		Str("request_id", entry.RequestID).
		Str("session_id", entry.SessionID).
		Str("contest_id", entry.ContestID).
		Str("email", entry.Email).
		Str("transaction_id", entry.TransactionID).
		Str("status", entry.Status).
		Int64("amount_minor", entry.AmountMinor).
		Str("currency", entry.Currency).
		Msg("Payment event")
}

// LogEnrollment logs the outcome of an enrollment attempt
func LogEnrollment(contestID, email, outcome string) {
	log.Info().
		Str("contest_id", contestID).
		Str("email", email).
		Str("outcome", outcome).
		Msg("Enrollment event")
}

// LogStatusChange logs an admin-driven state transition
func LogStatusChange(entity, id, from, to, actor string) {
	log.Info().
		Str("entity", entity).
		Str("id", id).
		Str("from", from).
		Str("to", to).
		Str("actor", actor).
		Msg("Status change")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, email, clientIP, details string) {
	log.Warn().
		Str("event_type", eventType).
		Str("email", email).
		Str("client_ip", clientIP).
		Str("details", details).
		Msg("Security event")
}

// LogError records a failed operation
func LogError(err error, requestID, component, operation string) {
	log.Error().Err(err).
		Str("request_id", requestID).
		Str("component", component).
		Str("operation", operation).
		Msg("operation failed")
}

// SanitizeForLog flattens line breaks and caps data at maxLen bytes.
func SanitizeForLog(data string, maxLen int) string {
	data = strings.NewReplacer("\n", " ", "\r", " ").Replace(data)
	if maxLen >= 0 && len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}
