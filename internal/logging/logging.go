// Package logging provides logger creation.
package logging

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dekarrin/grocer"
	"github.com/dekarrin/grocer/internal/middle"
	"github.com/dekarrin/jellog"
	"go.uber.org/zap"
)

// New creates a new logger of the given provider. If filename is blank, it will
// not log to disk, only stderr, and the stderr logger will be configured at
// trace level instead of info level.
func New(p grocer.LogProvider, filename string) (grocer.Logger, error) {
	var err error

	switch p {
	case grocer.NoLog:
		return nil, errors.New("log provider cannot be NoLog")
	case grocer.Jellog:
		var logOut *jellog.FileHandler
		if filename != "" {
			logOut, err = jellog.OpenFile(filename, nil)
			if err != nil {
				return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
			}
		}
		j := jellog.New(jellog.Defaults[string]().WithComponent("grocer"))

		if filename != "" {
			j.AddHandler(jellog.LvTrace, logOut)
			j.AddHandler(jellog.LvInfo, jellog.NewStderrHandler(nil))
		} else {
			j.AddHandler(jellog.LvTrace, jellog.NewStderrHandler(nil))
		}

		return jellogLogger{j: j}, nil
	case grocer.Zap:
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		if filename != "" {
			cfg.OutputPaths = []string{"stderr", filename}
		}

		z, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build zap logger: %w", err)
		}

		return zapLogger{s: z.Sugar().Named("grocer")}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", p.String())
	}
}

// NoOpLogger is a logger that performs no operations.
type NoOpLogger struct{}

func (log NoOpLogger) Debug(msg string)                             {}
func (log NoOpLogger) Warn(msg string)                              {}
func (log NoOpLogger) Trace(msg string)                             {}
func (log NoOpLogger) Info(msg string)                              {}
func (log NoOpLogger) Error(msg string)                             {}
func (log NoOpLogger) Debugf(msg string, a ...interface{})          {}
func (log NoOpLogger) Warnf(msg string, a ...interface{})           {}
func (log NoOpLogger) Tracef(msg string, a ...interface{})          {}
func (log NoOpLogger) Infof(msg string, a ...interface{})           {}
func (log NoOpLogger) Errorf(msg string, a ...interface{})          {}
func (log NoOpLogger) ErrorBreak()                                  {}
func (log NoOpLogger) InfoBreak()                                   {}
func (log NoOpLogger) WarnBreak()                                   {}
func (log NoOpLogger) TraceBreak()                                  {}
func (log NoOpLogger) DebugBreak()                                  {}
func (log NoOpLogger) LogResult(req *http.Request, r grocer.Result) {}

// zapLogger has no trace level; trace messages go to debug. Breaks are
// dropped since zap entries are structured, not line-oriented.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (log zapLogger) Trace(msg string) {
	log.s.Debug(msg)
}

func (log zapLogger) Tracef(msg string, a ...interface{}) {
	log.s.Debugf(msg, a...)
}

func (log zapLogger) TraceBreak() {}

func (log zapLogger) Debug(msg string) {
	log.s.Debug(msg)
}

func (log zapLogger) Debugf(msg string, a ...interface{}) {
	log.s.Debugf(msg, a...)
}

func (log zapLogger) DebugBreak() {}

func (log zapLogger) Info(msg string) {
	log.s.Info(msg)
}

func (log zapLogger) Infof(msg string, a ...interface{}) {
	log.s.Infof(msg, a...)
}

func (log zapLogger) InfoBreak() {}

func (log zapLogger) Warn(msg string) {
	log.s.Warn(msg)
}

func (log zapLogger) Warnf(msg string, a ...interface{}) {
	log.s.Warnf(msg, a...)
}

func (log zapLogger) WarnBreak() {}

func (log zapLogger) Error(msg string) {
	log.s.Error(msg)
}

func (log zapLogger) Errorf(msg string, a ...interface{}) {
	log.s.Errorf(msg, a...)
}

func (log zapLogger) ErrorBreak() {}

func (log zapLogger) LogResult(req *http.Request, r grocer.Result) {
	logHTTPResponse(log, req, r)
}

type jellogLogger struct {
	j jellog.Logger[string]
}

func (log jellogLogger) Debug(msg string) {
	log.j.Debug(msg)
}

func (log jellogLogger) Debugf(msg string, a ...interface{}) {
	log.j.Debugf(msg, a...)
}

func (log jellogLogger) Warn(msg string) {
	log.j.Warn(msg)
}

func (log jellogLogger) Warnf(msg string, a ...interface{}) {
	log.j.Warnf(msg, a...)
}

func (log jellogLogger) Trace(msg string) {
	log.j.Trace(msg)
}

func (log jellogLogger) Tracef(msg string, a ...interface{}) {
	log.j.Tracef(msg, a...)
}

func (log jellogLogger) Info(msg string) {
	log.j.Info(msg)
}

func (log jellogLogger) Infof(msg string, a ...interface{}) {
	log.j.Infof(msg, a...)
}

func (log jellogLogger) Error(msg string) {
	log.j.Error(msg)
}

func (log jellogLogger) Errorf(msg string, a ...interface{}) {
	log.j.Errorf(msg, a...)
}

func (log jellogLogger) ErrorBreak() {
	log.j.InsertBreak(jellog.LvError)
}

func (log jellogLogger) InfoBreak() {
	log.j.InsertBreak(jellog.LvInfo)
}

func (log jellogLogger) WarnBreak() {
	log.j.InsertBreak(jellog.LvWarn)
}

func (log jellogLogger) TraceBreak() {
	log.j.InsertBreak(jellog.LvTrace)
}

func (log jellogLogger) DebugBreak() {
	log.j.InsertBreak(jellog.LvDebug)
}

func (log jellogLogger) LogResult(req *http.Request, r grocer.Result) {
	logHTTPResponse(log, req, r)
}

func logHTTPResponse(log grocer.Logger, req *http.Request, r grocer.Result) {
	if r.IsErr {
		log.Error(formatHTTPResponse(req, r))
	} else {
		log.Info(formatHTTPResponse(req, r))
	}
}

func formatHTTPResponse(req *http.Request, r grocer.Result) string {
	// we don't really care about the ephemeral port from the client end
	remoteAddrParts := strings.SplitN(req.RemoteAddr, ":", 2)
	remoteIP := remoteAddrParts[0]

	line := fmt.Sprintf("%s %s %s: HTTP-%d %s", remoteIP, req.Method, req.URL.Path, r.Status, r.InternalMsg)
	if id := middle.RequestIDFrom(req.Context()); id != "" {
		line = "[" + id + "] " + line
	}
	return line
}
