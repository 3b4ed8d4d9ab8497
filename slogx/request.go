package slogx

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const redactionText = "**[REDACTED]**"

var defaultSensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// RedactHeaders returns the headers as a log attribute, replacing the values
// of sensitive headers. Authorization and cookies are always redacted.
func RedactHeaders(headers http.Header, sensitive ...string) slog.Attr {
	redact := make(map[string]bool, len(sensitive)+len(defaultSensitiveHeaders))
	for _, h := range append(sensitive, defaultSensitiveHeaders...) {
		redact[strings.ToLower(h)] = true
	}

	headerMap := make(map[string][]string, len(headers))
	for key, values := range headers {
		if redact[strings.ToLower(key)] {
			headerMap[key] = []string{redactionText}
		} else {
			headerMap[key] = values
		}
	}

	return slog.Any("headers", headerMap)
}

func RequestAttr(r *http.Request) slog.Attr {
	attrs := []slog.Attr{
		RedactHeaders(r.Header),
		slog.String("proto", r.Proto),
		slog.String("method", r.Method),
		slog.String("path", r.URL.EscapedPath()),
		slog.String("host", r.Host),
	}

	if len(r.URL.RawQuery) > 0 {
		attrs = append(attrs, slog.String("query", redactionText))
	}

	if ua := r.UserAgent(); len(ua) > 0 {
		attrs = append(attrs, slog.String("user-agent", ua))
	}

	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}

	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	attrs = append(attrs, slog.String("scheme", scheme), slog.String("remote", remoteIP))

	return slog.GroupAttrs("http_request", attrs...)
}
