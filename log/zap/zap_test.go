package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/assetcache"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Info("opened cache", assetcache.Fields{"generation": "v1", "entries": 4})
	l.Error("install failed", assetcache.Fields{"err": errors.New("boom")})

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("entries=%d", len(all))
	}
	ctx := all[0].ContextMap()
	if all[0].Message != "opened cache" || ctx["generation"] != "v1" || ctx["entries"] != int64(4) {
		t.Fatalf("unexpected first entry: %q %v", all[0].Message, ctx)
	}
	if all[1].Level != zapcore.ErrorLevel || all[1].ContextMap()["err"] != "boom" {
		t.Fatalf("unexpected error entry: %v", all[1].ContextMap())
	}
}
