package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/assetcache"
)

var _ assetcache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New wraps l; a nil l uses logrus.StandardLogger().
func New(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: logrus.NewEntry(l).WithField("component", "assetcache")}
}

func (l LogrusLogger) Debug(msg string, f assetcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f assetcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f assetcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f assetcache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' own error key.
func (l LogrusLogger) with(f assetcache.Fields) *logrus.Entry {
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		e = e.WithField(k, v)
	}
	return e
}
