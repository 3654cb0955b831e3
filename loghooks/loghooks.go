// Package loghooks reports lifecycle events through log/slog.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/assetcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ResolveEvery  uint64
	SelfHealEvery uint64
	// Optional storage key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	resolveCtr  atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ assetcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InstallCompleted(gen string, entries int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("assetcache.install_completed",
		"generation", gen,
		"entries", entries,
		"took", took)
}

func (h *Hooks) InstallFailed(gen, url string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("assetcache.install_failed",
		"generation", gen,
		"url", url,
		"err", err)
}

func (h *Hooks) StaleDeleted(gen string) {
	if h.l == nil {
		return
	}
	h.l.Info("assetcache.stale_deleted", "generation", gen)
}

func (h *Hooks) StaleDeleteFailed(gen string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("assetcache.stale_delete_failed",
		"generation", gen,
		"err", err)
}

func (h *Hooks) ResolveHit(url string) {
	if h.l == nil || !sample(h.opts.ResolveEvery, &h.resolveCtr) {
		return
	}
	h.l.Debug("assetcache.resolve", "url", url, "hit", true)
}

func (h *Hooks) ResolveMiss(url string) {
	if h.l == nil || !sample(h.opts.ResolveEvery, &h.resolveCtr) {
		return
	}
	h.l.Debug("assetcache.resolve", "url", url, "hit", false)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Warn("assetcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}
