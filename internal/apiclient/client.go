// Package apiclient is the typed JSON client for the workflow backend's wire
// contract. Every operation takes a context, decodes into an explicit payload
// shape (unknown shapes are decoding errors, never coerced), and maps
// failures onto the shared taxonomy: transport trouble is a network error,
// non-200 statuses are HTTP errors carrying the code, and the ownership
// endpoint's {error} body becomes a verification failure shown verbatim.
// There are no automatic retries; retrying is always an explicit holder
// action.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"askme/internal/ownership"
	"askme/internal/request"
	"askme/internal/reveal"
	dErrors "askme/pkg/domain-errors"
)

// Client talks to one workflow backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client (timeouts, transports,
// test doubles).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verifications fetches the verification records for a name.
func (c *Client) Verifications(ctx context.Context, name string) ([]request.Verification, error) {
	var out []request.Verification
	if err := c.get(ctx, "/api/verifications/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Requests fetches the verification requests addressed to a name, in the
// server's arrival order.
func (c *Client) Requests(ctx context.Context, name string) ([]request.VerificationRequest, error) {
	var out []request.VerificationRequest
	if err := c.get(ctx, "/api/requests/"+url.PathEscape(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApprovePayload is the approval submission body.
type ApprovePayload struct {
	FieldValue       string      `json:"fieldValue"`
	RevealMode       reveal.Mode `json:"revealMode"`
	VerifiedEnsOwner string      `json:"verifiedEnsOwner,omitempty"`
}

// Approve submits the holder's approval for a request.
func (c *Client) Approve(ctx context.Context, requestID string, payload ApprovePayload) error {
	return c.post(ctx, "/api/requests/"+url.PathEscape(requestID)+"/approve", payload, nil)
}

// Reject submits the holder's rejection for a request.
func (c *Client) Reject(ctx context.Context, requestID string) error {
	return c.post(ctx, "/api/requests/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

// ResolveOwner resolves a name to its current on-chain owner.
func (c *Client) ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error) {
	var out ownership.OwnerInfo
	if err := c.get(ctx, "/api/resolveOwner/"+url.PathEscape(name), &out); err != nil {
		return ownership.OwnerInfo{}, err
	}
	return out, nil
}

type verifyOwnershipPayload struct {
	EnsName   string `json:"ensName"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message,omitempty"`
}

// VerifyOwnership submits a signed ownership challenge for authoritative
// verification. A non-200 response carrying an {error} body surfaces as
// CodeVerificationFailed with the backend's reason verbatim.
func (c *Client) VerifyOwnership(ctx context.Context, name, address, signature, message string) (ownership.Result, error) {
	payload := verifyOwnershipPayload{EnsName: name, Address: address, Signature: signature, Message: message}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ownership.Result{}, dErrors.Wrap(dErrors.CodeInternal, "encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/verifyOwnership", bytes.NewReader(raw))
	if err != nil {
		return ownership.Result{}, dErrors.Wrap(dErrors.CodeInvalidInput, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ownership.Result{}, dErrors.Wrap(dErrors.CodeNetwork, "backend unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ownership.Result{}, dErrors.Wrap(dErrors.CodeNetwork, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		// This endpoint signals semantic rejection through an {error} body;
		// the reason reaches the holder verbatim.
		var semantic struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if jsonErr := json.Unmarshal(body, &semantic); jsonErr == nil && semantic.Error != "" {
			reason := semantic.Description
			if reason == "" {
				reason = semantic.Error
			}
			return ownership.Result{}, dErrors.New(dErrors.CodeVerificationFailed, reason)
		}
		return ownership.Result{}, dErrors.NewHTTP(resp.StatusCode, fmt.Sprintf("POST /api/verifyOwnership returned %d", resp.StatusCode))
	}

	var out ownership.Result
	if err := json.Unmarshal(body, &out); err != nil {
		return ownership.Result{}, dErrors.Wrap(dErrors.CodeDecoding, "unexpected response shape", err)
	}
	return out, nil
}

// CreatePayload is the verifier-side request creation body.
type CreatePayload struct {
	VerifierAddress string `json:"verifierAddress"`
	VerifierName    string `json:"verifierName,omitempty"`
	SubjectName     string `json:"subjectName"`
	Field           string `json:"field"`
}

// CreateRequest submits a new verification request (verifier side).
func (c *Client) CreateRequest(ctx context.Context, payload CreatePayload) (request.VerificationRequest, error) {
	var out request.VerificationRequest
	if err := c.post(ctx, "/api/requests", payload, &out); err != nil {
		return request.VerificationRequest{}, err
	}
	return out, nil
}

// RevealResponse carries the plaintext disclosed to a verifier in reveal
// mode, valid only inside the reveal window.
type RevealResponse struct {
	FieldValue string `json:"fieldValue"`
}

// Reveal consumes a reveal-mode disclosure (verifier side). After the window
// lapses the backend answers 410 and the value is gone.
func (c *Client) Reveal(ctx context.Context, requestID string) (RevealResponse, error) {
	var out RevealResponse
	if err := c.get(ctx, "/api/requests/"+url.PathEscape(requestID)+"/reveal", &out); err != nil {
		return RevealResponse{}, err
	}
	return out, nil
}

// MatchResponse is the no-reveal opening answer: a bare boolean.
type MatchResponse struct {
	Match bool `json:"match"`
}

// Match submits a no-reveal guess (verifier side).
func (c *Client) Match(ctx context.Context, requestID, guess string) (MatchResponse, error) {
	var out MatchResponse
	body := map[string]string{"guess": guess}
	if err := c.post(ctx, "/api/requests/"+url.PathEscape(requestID)+"/match", body, &out); err != nil {
		return MatchResponse{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInvalidInput, "build request", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "encode request body", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInvalidInput, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeNetwork, "backend unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeNetwork, "read response", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return dErrors.NewHTTP(resp.StatusCode, fmt.Sprintf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return dErrors.Wrap(dErrors.CodeDecoding, "unexpected response shape", err)
	}
	return nil
}
