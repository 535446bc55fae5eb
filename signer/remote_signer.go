package signer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pilacorp/go-didjwt/jose"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var logger = xlog.NewPackageLogger("github.com/pilacorp/go-didjwt", "signer")

// RemoteSigner signs payload digests with a remote signing service. The
// service receives {"payload_hex": hex(sha256(raw))} and answers with
// {"signature_hex": hex(R || S || V)}.
type RemoteSigner struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ jose.Signer = (*RemoteSigner)(nil)

// RemoteOption configures a RemoteSigner.
type RemoteOption func(*RemoteSigner)

// WithAPIKey sets the x-api-key header.
func WithAPIKey(apiKey string) RemoteOption {
	return func(s *RemoteSigner) {
		s.apiKey = apiKey
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteSigner) {
		s.client = client
	}
}

// NewRemoteSigner creates a RemoteSigner posting to endpoint.
func NewRemoteSigner(endpoint string, opts ...RemoteOption) (*RemoteSigner, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("endpoint required")
	}

	s := &RemoteSigner{
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return s, nil
}

type signRequest struct {
	PayloadHex string `json:"payload_hex"`
}

type signResponse struct {
	SignatureHex string `json:"signature_hex"`
}

// SignJWT implements jose.Signer.
func (s *RemoteSigner) SignJWT(ctx context.Context, rawPayload []byte) (jose.SignatureData, error) {
	hash := sha256.Sum256(rawPayload)
	sig, err := s.sign(ctx, hash[:])
	if err != nil {
		return jose.SignatureData{}, err
	}
	return jose.FromRSV(sig)
}

func (s *RemoteSigner) sign(ctx context.Context, digest []byte) ([]byte, error) {
	reqBody, err := json.Marshal(signRequest{PayloadHex: hexutil.Encode(digest)[2:]})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.KV(xlog.DEBUG, "reason", "status", "status", resp.StatusCode, "body", string(msg))
		return nil, errors.Newf("remote signer http %d", resp.StatusCode)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "invalid remote signer response")
	}

	sigHex := out.SignatureHex
	if !strings.HasPrefix(sigHex, "0x") {
		sigHex = "0x" + sigHex
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid signature_hex")
	}
	if len(sig) != jose.SigRecoverableSize {
		return nil, errors.Newf("invalid signature length %d", len(sig))
	}
	return sig, nil
}
