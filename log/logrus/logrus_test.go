package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/assetcache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("stale cache not deleted", assetcache.Fields{"generation": "v0", "err": boom})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Message != "stale cache not deleted" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Data["generation"] != "v0" || e.Data["component"] != "assetcache" {
		t.Fatalf("fields lost: %v", e.Data)
	}
	if e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("err not mapped to logrus error key: %v", e.Data)
	}

	l.Debug("opened cache", nil)
	if hook.LastEntry().Level != logrus.DebugLevel {
		t.Fatalf("debug not forwarded")
	}
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("entries=%d", len(hook.AllEntries()))
	}
}
