package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// accessLog is a chi LogFormatter that writes one logrus entry per request,
// so access logs follow the configured level and format.
type accessLog struct {
	logger *log.Entry
}

func newAccessLog() *accessLog {
	return &accessLog{logger: log.WithField("component", "http")}
}

func (a *accessLog) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &accessEntry{logger: a.logger.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type accessEntry struct {
	logger *log.Entry
}

func (e *accessEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := e.logger.WithFields(log.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.String(),
	})
	if status >= http.StatusInternalServerError {
		entry.Warn("request")
		return
	}
	entry.Info("request")
}

func (e *accessEntry) Panic(v interface{}, stack []byte) {
	e.logger.WithFields(log.Fields{
		"panic": v,
		"stack": string(stack),
	}).Error("request panicked")
}
