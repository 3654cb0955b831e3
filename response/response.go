// Package response holds the snapshot type stored for every cached request:
// status, headers and the full body, exactly as the network produced them.
package response

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// ErrBodyTooLarge is returned by FromHTTP when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("response: body too large")

// Response is a fully buffered copy of an HTTP response.
type Response struct {
	URL    string      `json:"url" msgpack:"url" cbor:"1,keyasint"`
	Status int         `json:"status" msgpack:"status" cbor:"2,keyasint"`
	Header http.Header `json:"header,omitempty" msgpack:"header" cbor:"3,keyasint,omitempty"`
	Body   []byte      `json:"body,omitempty" msgpack:"body" cbor:"4,keyasint,omitempty"`
}

// OK reports whether Status is in the 2xx range.
func (r Response) OK() bool { return r.Status >= 200 && r.Status <= 299 }

// Clone returns a deep copy so callers may mutate the result freely.
func (r Response) Clone() Response {
	out := Response{URL: r.URL, Status: r.Status, Header: r.Header.Clone()}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// FromHTTP drains and closes res.Body. If limit > 0 and the body is larger
// than limit bytes, an error is returned.
func FromHTTP(url string, res *http.Response, limit int64) (Response, error) {
	defer res.Body.Close()

	var rd io.Reader = res.Body
	if limit > 0 {
		rd = io.LimitReader(res.Body, limit+1)
	}
	body, err := io.ReadAll(rd)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return Response{}, fmt.Errorf("%w: > %d bytes", ErrBodyTooLarge, limit)
	}
	return Response{
		URL:    url,
		Status: res.StatusCode,
		Header: res.Header.Clone(),
		Body:   body,
	}, nil
}

// HTTP builds a new *http.Response for req. Each call gets its own body reader.
func (r Response) HTTP(req *http.Request) *http.Response {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + http.StatusText(r.Status),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
