package httpreq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gowsd/server/internal/linereader"
)

// ErrParse is the sentinel wrapped by every request-line/header/body framing
// failure; the worker translates it into a 400 response.
var ErrParse = errors.New("httpreq: malformed request")

// ErrBodyTooLarge indicates a declared Content-Length above the configured
// limit; the worker translates it into a 413 response.
var ErrBodyTooLarge = errors.New("httpreq: request body exceeds configured limit")

// Request is the immutable result of parsing one HTTP/1.x request off the
// wire.
type Request struct {
	HTTPVersion string
	Method      string
	Path        string
	Query       map[string][]string
	Header      Header
	Body        []byte
}

// QueryValues returns the ordered values for a query parameter, or nil.
func (r *Request) QueryValues(name string) []string {
	return r.Query[name]
}

// IsHead reports whether the request method is HEAD (response writing
// must then suppress the body while keeping Content-Length).
func (r *Request) IsHead() bool {
	return r.Method == "HEAD"
}

// ParseRequest reads exactly one HTTP/1.x request from lr.
//
// Steps: request-line split on first/last space, header
// folding into a case-insensitive ordered multimap, a single well-formed
// Content-Length governs the body (chunked Transfer-Encoding is rejected),
// and the target is percent-decoded and split into path + ordered query
// multimap.
func ParseRequest(ctx context.Context, lr *linereader.Reader, maxBodyBytes int) (*Request, error) {
	line, err := lr.ReadLine(ctx)
	if err != nil {
		return nil, err
	}

	method, target, version, err := splitRequestLine(line)
	if err != nil {
		return nil, err
	}

	hdr, err := readHeaders(ctx, lr)
	if err != nil {
		return nil, err
	}

	body, err := readBody(ctx, lr, &hdr, maxBodyBytes)
	if err != nil {
		return nil, err
	}

	path, query, err := splitTarget(target)
	if err != nil {
		return nil, err
	}

	return &Request{
		HTTPVersion: version,
		Method:      strings.ToUpper(method),
		Path:        path,
		Query:       query,
		Header:      hdr,
		Body:        body,
	}, nil
}

// splitRequestLine splits on the first and last space: tolerant of extra
// internal whitespace in the target,
// but mis-parses a target containing a literal space — accepted leniency.
func splitRequestLine(line string) (method, target, version string, err error) {
	first := strings.IndexByte(line, ' ')
	last := strings.LastIndexByte(line, ' ')
	if first == -1 || last == -1 || first == last {
		return "", "", "", fmt.Errorf("%w: malformed request line %q", ErrParse, line)
	}

	method = line[:first]
	target = line[first+1 : last]
	version = line[last+1:]

	if method == "" || target == "" || version == "" {
		return "", "", "", fmt.Errorf("%w: empty request-line component", ErrParse)
	}

	return method, target, version, nil
}

func readHeaders(ctx context.Context, lr *linereader.Reader) (Header, error) {
	var hdr Header

	for {
		line, err := lr.ReadLine(ctx)
		if err != nil {
			return hdr, err
		}
		if line == "" {
			return hdr, nil
		}

		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			return hdr, fmt.Errorf("%w: header missing colon %q", ErrParse, line)
		}

		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if name == "" {
			return hdr, fmt.Errorf("%w: empty header name", ErrParse)
		}

		hdr.Add(name, value)
	}
}

func readBody(ctx context.Context, lr *linereader.Reader, hdr *Header, maxBodyBytes int) ([]byte, error) {
	if te := hdr.Get("Transfer-Encoding"); te != "" {
		return nil, fmt.Errorf("%w: chunked transfer-encoding not supported", ErrParse)
	}

	if hdr.Count("Content-Length") > 1 {
		return nil, fmt.Errorf("%w: duplicate Content-Length", ErrParse)
	}

	cl := hdr.Get("Content-Length")
	if cl == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: malformed Content-Length %q", ErrParse, cl)
	}
	if n == 0 {
		return nil, nil
	}
	if maxBodyBytes > 0 && n > maxBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, n)
	}

	body, err := lr.ReadRemaining(ctx, n)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// splitTarget percent-decodes target, splits off the query string, and
// parses it into an ordered multimap preserving duplicate keys in order.
func splitTarget(target string) (path string, query map[string][]string, err error) {
	rawPath := target
	rawQuery := ""
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		rawPath = target[:idx]
		rawQuery = target[idx+1:]
	}

	path, err = percentDecode(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	query, err = parseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return path, query, nil
}

func parseQuery(raw string) (map[string][]string, error) {
	values := make(map[string][]string)
	if raw == "" {
		return values, nil
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		var key, val string
		if idx := strings.IndexByte(pair, '='); idx != -1 {
			key, val = pair[:idx], pair[idx+1:]
		} else {
			key = pair
		}

		dkey, err := percentDecode(strings.ReplaceAll(key, "+", " "))
		if err != nil {
			return nil, err
		}
		dval, err := percentDecode(strings.ReplaceAll(val, "+", " "))
		if err != nil {
			return nil, err
		}

		values[dkey] = append(values[dkey], dval)
	}

	return values, nil
}

// percentDecode decodes %XX escapes. Malformed escapes are rejected rather
// than silently passed through: percent-decoding is strict even though
// request-line splitting is lenient;
// percent-encoding is a well-defined, checkable grammar).
func percentDecode(s string) (string, error) {
	if !strings.ContainsRune(s, '%') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated percent-encoding at offset %d", i)
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid percent-encoding %q", s[i:i+3])
		}
		b.WriteByte(byte(v))
		i += 2
	}

	return b.String(), nil
}
