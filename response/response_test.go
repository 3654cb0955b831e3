package response

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestFromHTTPCapturesEverything(t *testing.T) {
	res := &http.Response{
		StatusCode: 203,
		Header:     http.Header{"Content-Type": {"text/css"}, "X-Multi": {"a", "b"}},
		Body:       io.NopCloser(strings.NewReader("body{}")),
	}
	got, err := FromHTTP("https://site.test/b.css", res, 0)
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	if got.Status != 203 || got.URL != "https://site.test/b.css" || string(got.Body) != "body{}" {
		t.Fatalf("unexpected snapshot: %#v", got)
	}
	if v := got.Header.Values("X-Multi"); len(v) != 2 {
		t.Fatalf("multi-value header lost: %v", v)
	}
}

func TestFromHTTPRejectsOversizedBody(t *testing.T) {
	res := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(make([]byte, 11))),
	}
	if _, err := FromHTTP("u", res, 10); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected size error")
	}

	res.Body = io.NopCloser(bytes.NewReader(make([]byte, 10)))
	if _, err := FromHTTP("u", res, 10); err != nil {
		t.Fatalf("body at limit should pass: %v", err)
	}
}

func TestHTTPGivesIndependentBodies(t *testing.T) {
	r := Response{URL: "u", Status: 200, Header: http.Header{"A": {"1"}}, Body: []byte("hello")}

	for i := 0; i < 2; i++ {
		res := r.HTTP(nil)
		b, err := io.ReadAll(res.Body)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(b) != "hello" || res.StatusCode != 200 || res.ContentLength != 5 {
			t.Fatalf("round %d: unexpected response %q %d", i, b, res.StatusCode)
		}
		res.Header.Set("A", "mutated")
	}
	if r.Header.Get("A") != "1" {
		t.Fatalf("snapshot header mutated through HTTP()")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := Response{Status: 200, Header: http.Header{"A": {"1"}}, Body: []byte("x")}
	c := r.Clone()
	c.Body[0] = 'y'
	c.Header.Set("A", "2")
	if string(r.Body) != "x" || r.Header.Get("A") != "1" {
		t.Fatalf("clone shares memory with original")
	}
	if !r.OK() || (Response{Status: 304}).OK() {
		t.Fatalf("OK() mismatch")
	}
}
