// Package handler exposes the disclosure workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"askme/internal/ownership"
	"askme/internal/platform/metrics"
	"askme/internal/platform/middleware"
	"askme/internal/request"
	"askme/internal/workflow"
	dErrors "askme/pkg/domain-errors"
	"askme/pkg/platform/httputil"
	"askme/pkg/requestcontext"
)

// Service defines the workflow operations the handler needs.
type Service interface {
	CreateRequest(ctx context.Context, params workflow.CreateParams) (request.VerificationRequest, error)
	ListRequests(ctx context.Context, subjectName string) ([]request.VerificationRequest, error)
	Approve(ctx context.Context, params workflow.ApproveParams) error
	Reject(ctx context.Context, requestID string) error
	Reveal(ctx context.Context, requestID string) (string, error)
	Match(ctx context.Context, requestID, guess string) (bool, error)
	ResolveOwner(ctx context.Context, name string) (ownership.OwnerInfo, error)
	VerifyOwnership(ctx context.Context, name, address, signature, message string) (ownership.Result, error)
	ListVerifications(ctx context.Context, subjectName string) ([]request.Verification, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register mounts the API routes with the standard middleware chain.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.RequestTime)
	api.Use(middleware.ClientMetadata)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.Latency(h.metrics))

	api.Post("/requests", h.handleCreateRequest)
	api.Get("/requests/{name}", h.handleListRequests)
	api.Post("/requests/{id}/approve", h.handleApprove)
	api.Post("/requests/{id}/reject", h.handleReject)
	api.Get("/requests/{id}/reveal", h.handleReveal)
	api.Post("/requests/{id}/match", h.handleMatch)
	api.Get("/verifications/{name}", h.handleListVerifications)
	api.Get("/resolveOwner/{name}", h.handleResolveOwner)
	api.Post("/verifyOwnership", h.handleVerifyOwnership)

	r.Mount("/api", api)
}

type createRequestBody struct {
	VerifierAddress string `json:"verifierAddress"`
	VerifierName    string `json:"verifierName"`
	SubjectName     string `json:"subjectName"`
	Field           string `json:"field"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req, err := h.service.CreateRequest(ctx, workflow.CreateParams{
		VerifierAddress: body.VerifierAddress,
		VerifierName:    body.VerifierName,
		SubjectName:     body.SubjectName,
		Field:           body.Field,
	})
	if err != nil {
		h.warn(ctx, "create request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	requests, err := h.service.ListRequests(ctx, name)
	if err != nil {
		h.warn(ctx, "list requests failed", err)
		httputil.WriteError(w, err)
		return
	}
	if requests == nil {
		requests = []request.VerificationRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, requests)
}

type approveBody struct {
	FieldValue       string `json:"fieldValue"`
	RevealMode       string `json:"revealMode"`
	VerifiedEnsOwner string `json:"verifiedEnsOwner"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body approveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	err := h.service.Approve(ctx, workflow.ApproveParams{
		RequestID:        chi.URLParam(r, "id"),
		FieldValue:       body.FieldValue,
		RevealMode:       body.RevealMode,
		VerifiedEnsOwner: body.VerifiedEnsOwner,
	})
	if err != nil {
		h.warn(ctx, "approve failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Reject(ctx, chi.URLParam(r, "id")); err != nil {
		h.warn(ctx, "reject failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleReveal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	value, err := h.service.Reveal(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.warn(ctx, "reveal failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"fieldValue": value})
}

type matchBody struct {
	Guess string `json:"guess"`
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body matchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	matched, err := h.service.Match(ctx, chi.URLParam(r, "id"), body.Guess)
	if err != nil {
		h.warn(ctx, "match failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"match": matched})
}

func (h *Handler) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	verifications, err := h.service.ListVerifications(ctx, name)
	if err != nil {
		h.warn(ctx, "list verifications failed", err)
		httputil.WriteError(w, err)
		return
	}
	if verifications == nil {
		verifications = []request.Verification{}
	}
	httputil.WriteJSON(w, http.StatusOK, verifications)
}

func (h *Handler) handleResolveOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	info, err := h.service.ResolveOwner(ctx, name)
	if err != nil {
		h.warn(ctx, "resolve owner failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

type verifyOwnershipBody struct {
	EnsName   string `json:"ensName"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

func (h *Handler) handleVerifyOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body verifyOwnershipBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if body.EnsName == "" || body.Signature == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ensName and signature are required"))
		return
	}

	result, err := h.service.VerifyOwnership(ctx, body.EnsName, body.Address, body.Signature, body.Message)
	if err != nil {
		h.warn(ctx, "verify ownership failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
