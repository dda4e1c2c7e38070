package probe

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/Sriram-PR/page-auditor/pkg/utils"
)

// DataURI is a parsed RFC 2397 data URI. Data holds the still-encoded payload.
type DataURI struct {
	MediaType string
	Params    map[string]string
	Base64    bool
	Data      string
}

// ParseDataURI splits raw into media type, encoding and payload without decoding it
func ParseDataURI(raw string) (DataURI, error) {
	s := strings.TrimSpace(raw)
	if !hasPrefixFold(s, "data:") {
		return DataURI{}, fmt.Errorf("%w: missing data: prefix", utils.ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing comma", utils.ErrInvalidDataURI)
	}

	d := DataURI{Data: payload}
	if i := strings.LastIndex(header, ";"); i >= 0 && strings.EqualFold(header[i+1:], "base64") {
		d.Base64 = true
		header = header[:i]
	}

	if header == "" || strings.HasPrefix(header, ";") {
		header = "text/plain" + header
	}
	mt, params, err := mime.ParseMediaType(header)
	if errors.Is(err, mime.ErrInvalidMediaParameter) && mt != "" {
		err = nil // e.g. "image/svg+xml;utf8"
	}
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: media type %q: %w", utils.ErrInvalidDataURI, header, err)
	}
	d.MediaType = mt
	d.Params = params
	return d, nil
}

// EstimatedSize is the decoded byte count, estimated from the encoded length
func (d DataURI) EstimatedSize() int64 {
	if d.Base64 {
		n := int64(len(d.Data))
		return (n*3 + 3) / 4
	}
	if u, err := url.PathUnescape(d.Data); err == nil {
		return int64(len(u))
	}
	return int64(len(d.Data))
}

// Decode returns the payload bytes
func (d DataURI) Decode() ([]byte, error) {
	if !d.Base64 {
		s, err := url.PathUnescape(d.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrInvalidDataURI, err)
		}
		return []byte(s), nil
	}
	payload := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, d.Data)
	if p, err := url.PathUnescape(payload); err == nil {
		payload = p
	}
	enc := base64.StdEncoding
	if !strings.HasSuffix(payload, "=") && len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	b, err := enc.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", utils.ErrInvalidDataURI, err)
	}
	return b, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
