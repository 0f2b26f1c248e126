package transport

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
)

func newBodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// maxResponseBody bounds how much of a response body Run will buffer; the
// object-transfer layer streams large bodies itself via Range requests, so
// this only needs to be generous enough for metadata/listing responses.
const maxResponseBody = 64 * 1024 * 1024

func readAllCapped(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, maxResponseBody+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxResponseBody {
		return nil, errors.New("transport: response body exceeds maximum buffered size")
	}
	return data, nil
}

// classifyTransportError maps a low-level transport failure onto one of
// the mandatory-retry kinds from spec §4.1: ErrTimedOut for a timeout,
// ErrTransport for every other error, recognized or not.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTimedOut
		}
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrTransport
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrTransport
	}

	var tlsErr tls.RecordHeaderError
	if errors.As(err, &tlsErr) {
		return ErrTransport
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrTransport
	}

	return ErrTransport
}
