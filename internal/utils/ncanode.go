package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"akimat/internal/logger"
)

const (
	ncanodeVerifyPath     = "/xml/verify"
	ncanodeDefaultTimeout = 10 * time.Second
	ncanodeMaxBody        = 1 << 20
)

// NCANodeClient talks to NCANode, the XML-signature verification service.
// Every failure path is fail-closed: callers get false / no identity, never an error.
type NCANodeClient struct {
	endpoint   string
	revocation []string
	http       *http.Client
	log        zerolog.Logger
}

type NCANodeOptions struct {
	Timeout    time.Duration
	VerifyOCSP bool
	VerifyCRL  bool
	HTTPClient *http.Client
}

func NewNCANodeClient(endpoint string, opts NCANodeOptions) *NCANodeClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = ncanodeDefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	// отдельная копия, чтобы не менять чужой клиент
	c := *hc
	c.Timeout = timeout

	var revocation []string
	if opts.VerifyOCSP {
		revocation = append(revocation, "OCSP")
	}
	if opts.VerifyCRL {
		revocation = append(revocation, "CRL")
	}

	return &NCANodeClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		revocation: revocation,
		http:       &c,
		log:        logger.Component("ncanode"),
	}
}

type ncanodeVerifyRequest struct {
	XML             string   `json:"xml"`
	RevocationCheck []string `json:"revocationCheck,omitempty"`
}

type NCANodeSubject struct {
	IIN        string `json:"iin"`
	CommonName string `json:"commonName"`
}

type NCANodeSigner struct {
	Valid   bool           `json:"valid"`
	Subject NCANodeSubject `json:"subject"`
}

type NCANodeVerifyResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Signers []NCANodeSigner `json:"signers"`
}

// Verify reports whether NCANode accepts the signature of signedXML
// (with the configured revocation checks). Timeouts, transport errors,
// non-200 responses and malformed bodies all yield false.
func (c *NCANodeClient) Verify(ctx context.Context, signedXML string) bool {
	res, err := c.post(ctx, ncanodeVerifyRequest{XML: signedXML, RevocationCheck: c.revocation})
	if err != nil {
		c.log.Error().Err(err).Msg("xml signature verification failed")
		return false
	}
	if len(res.Signers) == 0 || !res.Signers[0].Valid {
		c.log.Warn().Str("message", res.Message).Int("signers", len(res.Signers)).
			Msg("xml signature rejected")
		return false
	}
	c.log.Info().Msg("xml signature verification successful")
	return true
}

// ExtractIdentity returns the IIN from the first signer's certificate subject.
// It issues its own call to NCANode; ok is false on any failure or when the
// subject carries no well-formed IIN.
func (c *NCANodeClient) ExtractIdentity(ctx context.Context, signedXML string) (iin string, ok bool) {
	res, err := c.post(ctx, ncanodeVerifyRequest{XML: signedXML})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to get certificate info")
		return "", false
	}
	if len(res.Signers) == 0 {
		c.log.Warn().Msg("no signers in certificate info")
		return "", false
	}
	iin = strings.TrimSpace(res.Signers[0].Subject.IIN)
	if !IsValidIIN(iin) {
		c.log.Warn().Bool("iin_present", iin != "").Msg("certificate subject has no valid IIN")
		return "", false
	}
	c.log.Debug().Str("signer", res.Signers[0].Subject.CommonName).Msg("certificate identity extracted")
	return iin, true
}

func (c *NCANodeClient) post(ctx context.Context, payload ncanodeVerifyRequest) (*NCANodeVerifyResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+ncanodeVerifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ncanode request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, ncanodeMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug().Int("http_status", resp.StatusCode).Int("body_len", len(raw)).Msg("ncanode response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ncanode http status %d", resp.StatusCode)
	}

	var res NCANodeVerifyResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if res.Status != http.StatusOK {
		return nil, fmt.Errorf("ncanode status %d: %s", res.Status, res.Message)
	}
	return &res, nil
}
