package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/AngelCh415/funnel-dash/internal/telemetry"
)

var ErrSinkNotConfigured = errors.New("ingest: export sink not configured")

const SignatureHeader = "X-Signature"

// Exporter pushes a JSON payload to a sink, signed with HMAC-SHA256 over the
// exact body bytes.
type Exporter struct {
	c      HTTPClient
	url    string
	secret string
	log    *slog.Logger
}

func NewExporter(c HTTPClient, sinkURL, secret string, log *slog.Logger) *Exporter {
	return &Exporter{c: c, url: sinkURL, secret: secret, log: log}
}

func (e *Exporter) Configured() bool { return e.url != "" && e.secret != "" }

// Export returns the number of bytes delivered.
func (e *Exporter) Export(ctx context.Context, payload any) (int, error) {
	if !e.Configured() {
		telemetry.Exports.WithLabelValues("unconfigured").Inc()
		return 0, ErrSinkNotConfigured
	}
	b, err := json.Marshal(payload)
	if err != nil {
		telemetry.Exports.WithLabelValues("failure").Inc()
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(b))
	if err != nil {
		telemetry.Exports.WithLabelValues("failure").Inc()
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(e.secret, b))
	resp, err := e.c.Do(req)
	if err != nil {
		telemetry.Exports.WithLabelValues("failure").Inc()
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		telemetry.Exports.WithLabelValues("failure").Inc()
		return 0, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	telemetry.Exports.WithLabelValues("success").Inc()
	e.log.Info("export delivered", slog.Int("bytes", len(b)), slog.Int("status", resp.StatusCode))
	return len(b), nil
}

// Sign is the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func Verify(secret string, body []byte, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
