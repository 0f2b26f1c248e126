package s3

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/s3fuse/corefs/internal/crypto"
	"github.com/s3fuse/corefs/internal/transport"
)

// LegacySigner implements transport.Hook for the AWS-v2 and IIJ GIO
// request-signing schemes, which share a canonical string-to-sign:
//
//	METHOD\nCONTENT-MD5\nCONTENT-TYPE\nDATE\n<canonicalized headers>resource
//
// HMAC-SHA1 with the account secret key; the base64 of the MAC is placed
// in the Authorization header as "<scheme> key:sig".
type LegacySigner struct {
	AccessKey    string
	SecretKey    string
	AuthScheme   string // "AWS" or "IIJGIO"
	HeaderPrefix string // "x-amz-" or "x-iijgio-"
	BucketURL    string // scheme://host, resource path is appended to this
}

// AdjustURL resolves a relative key path against the bucket's base URL.
func (s *LegacySigner) AdjustURL(relative string, query map[string]string) string {
	url := strings.TrimRight(s.BucketURL, "/") + relative
	if len(query) == 0 {
		return url
	}
	parts := make([]string, 0, len(query))
	for k, v := range query {
		if v == "" {
			parts = append(parts, k)
		} else {
			parts = append(parts, k+"="+v)
		}
	}
	sort.Strings(parts)
	return url + "?" + strings.Join(parts, "&")
}

// PreRun sets the Date header and computes the Authorization header from
// the request's method, body, content-type, and prefixed headers.
func (s *LegacySigner) PreRun(req *transport.Request, attempt int) error {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.SetHeader("Date", date)

	canonical := s.canonicalString(req, date)
	mac := crypto.HMACSHA1([]byte(s.SecretKey), []byte(canonical))
	sig := crypto.Base64Encode(mac)
	req.SetHeader("Authorization", fmt.Sprintf("%s %s:%s", s.AuthScheme, s.AccessKey, sig))
	return nil
}

// ShouldRetry defers entirely to the transport layer's mandatory
// retry conditions; AWS/IIJ have no additional hook-level retry policy.
func (s *LegacySigner) ShouldRetry(req *transport.Request, attempt int) bool {
	return false
}

func (s *LegacySigner) canonicalString(req *transport.Request, date string) string {
	headers := req.Headers()
	contentMD5 := headers["Content-MD5"]
	contentType := headers["Content-Type"]

	var prefixed []string
	for k := range headers {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, s.HeaderPrefix) {
			prefixed = append(prefixed, lower)
		}
	}
	sort.Strings(prefixed)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n", string(req.Method()), contentMD5, contentType, date)
	for _, name := range prefixed {
		fmt.Fprintf(&b, "%s:%s\n", name, headers[canonicalHeaderKey(headers, name)])
	}
	b.WriteString(resourcePath(req.RelativeURL()))
	return b.String()
}

// canonicalHeaderKey finds the original-cased key matching a
// lower-cased header name, since req.Headers() preserves caller casing.
func canonicalHeaderKey(headers map[string]string, lower string) string {
	for k := range headers {
		if strings.EqualFold(k, lower) {
			return k
		}
	}
	return lower
}

// resourcePath strips any query string, leaving the bare resource the
// signature covers.
func resourcePath(relative string) string {
	if i := strings.IndexByte(relative, '?'); i >= 0 {
		return relative[:i]
	}
	return relative
}
