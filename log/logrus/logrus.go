// Package logrus adapts a logrus entry to optcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/optcache"
)

var _ optcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every record with component=optcache.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "optcache")}
}

func (l Logger) Debug(msg string, f optcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f optcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f optcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f optcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f optcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			k = logrus.ErrorKey
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
