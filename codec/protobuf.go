package codec

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/assetcache/response"
)

// ResponseProto encodes response.Response in protobuf wire format, matching
//
//	message Response {
//	  int64  status = 1;
//	  repeated Header header = 2; // Header { string name = 1; repeated string values = 2; }
//	  bytes  body   = 3;
//	  string url    = 4;
//	}
//
// so non-Go readers of a shared store can decode entries with generated code.
// Unknown fields are skipped on decode.
type ResponseProto struct{}

var _ Codec[response.Response] = ResponseProto{}

const (
	fieldStatus protowire.Number = 1
	fieldHeader protowire.Number = 2
	fieldBody   protowire.Number = 3
	fieldURL    protowire.Number = 4

	fieldHeaderName  protowire.Number = 1
	fieldHeaderValue protowire.Number = 2
)

var errProtoTruncated = errors.New("protobuf: truncated response")

func (ResponseProto) Encode(r response.Response) ([]byte, error) {
	b := make([]byte, 0, len(r.Body)+64)
	b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Status))

	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var hb []byte
		hb = protowire.AppendTag(hb, fieldHeaderName, protowire.BytesType)
		hb = protowire.AppendString(hb, name)
		for _, v := range r.Header[name] {
			hb = protowire.AppendTag(hb, fieldHeaderValue, protowire.BytesType)
			hb = protowire.AppendString(hb, v)
		}
		b = protowire.AppendTag(b, fieldHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, hb)
	}

	if len(r.Body) > 0 {
		b = protowire.AppendTag(b, fieldBody, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Body)
	}
	if r.URL != "" {
		b = protowire.AppendTag(b, fieldURL, protowire.BytesType)
		b = protowire.AppendString(b, r.URL)
	}
	return b, nil
}

func (ResponseProto) Decode(b []byte) (response.Response, error) {
	var r response.Response
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return response.Response{}, fmt.Errorf("protobuf: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return response.Response{}, errProtoTruncated
			}
			r.Status = int(v)
			b = b[n:]
		case num == fieldHeader && typ == protowire.BytesType:
			hb, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return response.Response{}, errProtoTruncated
			}
			if r.Header == nil {
				r.Header = make(http.Header)
			}
			if err := decodeHeader(hb, r.Header); err != nil {
				return response.Response{}, err
			}
			b = b[n:]
		case num == fieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return response.Response{}, errProtoTruncated
			}
			r.Body = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldURL && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return response.Response{}, errProtoTruncated
			}
			r.URL = string(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return response.Response{}, fmt.Errorf("protobuf: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func decodeHeader(b []byte, into http.Header) error {
	var name string
	var values []string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("protobuf header: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldHeaderName && num != fieldHeaderValue) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("protobuf header: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return errProtoTruncated
		}
		if num == fieldHeaderName {
			name = string(v)
		} else {
			values = append(values, string(v))
		}
		b = b[n:]
	}
	if name == "" {
		return errors.New("protobuf header: missing name")
	}
	// stored names are already canonical; keep them verbatim
	into[name] = append(into[name], values...)
	return nil
}
