package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Ask the remote verification service whether a signature
 *		matches a message.
 *
 * Description:	POST {scheme}://{host}/api/signature/mmsi/verify/{mmsi}
 *
 *			{"content": "<base64>", "signature": "<base64>"}
 *
 *		Any 2xx status means the signature is good.  Everything
 *		else, including a timeout or network failure, means it is
 *		not.  We never retry.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const DefaultVerifyPath = "/api/signature/mmsi/verify/{mmsi}"

// AuthenticationRequest is built on demand and never stored.
type AuthenticationRequest struct {
	ID          string
	ContentHash []byte
	Signature   []byte
	TargetMMSI  uint32
}

// Verifier checks one request.  A false result with a nil error never
// happens for HTTPVerifier but other implementations may use it.
type Verifier interface {
	Verify(ctx context.Context, req *AuthenticationRequest) (bool, error)
}

type verifyBody struct {
	Content   string `json:"content"`
	Signature string `json:"signature"`
}

type HTTPVerifier struct {
	scheme string
	host   string
	path   string
	client *http.Client
	logger *log.Logger
}

// NewHTTPVerifier creates a verifier for host ("name:port").  path may
// contain {mmsi}; empty means DefaultVerifyPath.
func NewHTTPVerifier(scheme string, host string, path string, timeout time.Duration, logger *log.Logger) *HTTPVerifier {
	if scheme == "" {
		scheme = "http"
	}
	if path == "" {
		path = DefaultVerifyPath
	}

	return &HTTPVerifier{
		scheme: scheme,
		host:   host,
		path:   path,
		client: &http.Client{Timeout: timeout}, //nolint:exhaustruct
		logger: logger,
	}
}

// URL for the given target.
func (v *HTTPVerifier) URL(mmsi uint32) string {
	var path = strings.ReplaceAll(v.path, "{mmsi}", strconv.FormatUint(uint64(mmsi), 10))

	return fmt.Sprintf("%s://%s%s", v.scheme, v.host, path)
}

func (v *HTTPVerifier) Verify(ctx context.Context, req *AuthenticationRequest) (bool, error) {
	var body, marshalErr = json.Marshal(verifyBody{
		Content:   base64.StdEncoding.EncodeToString(req.ContentHash),
		Signature: base64.StdEncoding.EncodeToString(req.Signature),
	})
	if marshalErr != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, marshalErr)
	}

	var url = v.URL(req.TargetMMSI)

	var httpReq, reqErr = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, reqErr)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", req.ID)

	v.logger.Debug("verification request", "url", url, "id", req.ID)

	var resp, doErr = v.client.Do(httpReq)
	if doErr != nil {
		return false, fmt.Errorf("%w: %w", ErrVerification, doErr)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: %s returned %s", ErrVerification, url, resp.Status)
	}

	return true, nil
}
