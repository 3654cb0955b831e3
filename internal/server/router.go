package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/internal/host"
)

// hop-by-hop headers never cross the proxy
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

type handlers struct {
	host    *host.Host
	metrics http.Handler
	log     *log.Entry
}

// NewRouter mounts the lifecycle endpoints under /_/ and sends every other
// path through the active cache version.
func NewRouter(h *host.Host, metrics http.Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	hs := &handlers{host: h, metrics: metrics, log: logger}

	r := mux.NewRouter()
	admin := r.PathPrefix("/_").Subrouter()
	admin.HandleFunc("/install", hs.install).Methods(http.MethodPost)
	admin.HandleFunc("/activate", hs.activate).Methods(http.MethodPost)
	admin.HandleFunc("/deploy", hs.deploy).Methods(http.MethodPost)
	admin.HandleFunc("/generations", hs.generations).Methods(http.MethodGet)
	admin.HandleFunc("/healthz", hs.healthz).Methods(http.MethodGet)
	if metrics != nil {
		admin.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	r.PathPrefix("/").HandlerFunc(hs.proxy)
	return r
}

func (hs *handlers) install(w http.ResponseWriter, r *http.Request) {
	gen, err := hs.host.Install(r.Context())
	if err != nil {
		hs.fail(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"installed": gen})
}

func (hs *handlers) activate(w http.ResponseWriter, r *http.Request) {
	res, err := hs.host.Activate(r.Context())
	if errors.Is(err, host.ErrNothingInstalled) {
		hs.fail(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		hs.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, activateBody(res))
}

func (hs *handlers) deploy(w http.ResponseWriter, r *http.Request) {
	res, err := hs.host.Deploy(r.Context())
	if err != nil {
		hs.fail(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, activateBody(res))
}

func (hs *handlers) generations(w http.ResponseWriter, r *http.Request) {
	gens, err := hs.host.Generations(r.Context())
	if err != nil {
		hs.fail(w, http.StatusInternalServerError, err)
		return
	}
	if gens == nil {
		gens = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": activeGeneration(hs.host), "generations": gens})
}

func (hs *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active": activeGeneration(hs.host)})
}

func (hs *handlers) proxy(w http.ResponseWriter, r *http.Request) {
	origin := hs.host.Config().Origin
	if origin == "" {
		hs.fail(w, http.StatusBadGateway, errors.New("no origin configured"))
		return
	}
	out, err := outbound(r, origin)
	if err != nil {
		hs.fail(w, http.StatusBadGateway, err)
		return
	}

	res, err := hs.host.Resolve(out)
	if err != nil {
		hs.fail(w, http.StatusBadGateway, errors.Wrapf(err, "fetch %s", out.URL))
		return
	}
	defer res.Body.Close()

	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		hs.log.WithError(err).WithField("url", out.URL.String()).Debug("client went away mid-body")
	}
}

// outbound rewrites an inbound request onto the origin.
func outbound(r *http.Request, origin string) (*http.Request, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, errors.Wrap(err, "parse origin")
	}
	target := *base
	target.Path = strings.TrimSuffix(base.Path, "/") + r.URL.Path
	target.RawPath = ""
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "build outbound request")
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.ContentLength = r.ContentLength
	return out, nil
}

func activeGeneration(h *host.Host) string {
	if m := h.Active(); m != nil {
		return m.Generation()
	}
	return ""
}

type activateResponse struct {
	Retained string            `json:"retained"`
	Deleted  []string          `json:"deleted"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func activateBody(res assetcache.ActivateResult) activateResponse {
	out := activateResponse{Retained: res.Retained, Deleted: res.Deleted}
	if out.Deleted == nil {
		out.Deleted = []string{}
	}
	if len(res.Failed) > 0 {
		out.Failed = make(map[string]string, len(res.Failed))
		for g, err := range res.Failed {
			out.Failed[g] = err.Error()
		}
	}
	return out
}

func (hs *handlers) fail(w http.ResponseWriter, status int, err error) {
	hs.log.WithError(err).WithField("status", status).Warn("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
