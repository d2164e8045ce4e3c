package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"askme/internal/commitment"
	"askme/internal/request"
	"askme/internal/reveal"
)

// PostgresStore persists requests, approvals and verification records in
// Postgres. Insertion order is recovered through a monotonic sequence
// column rather than timestamps, so listing stays stable under clock skew.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the tables when they do not exist. Kept as executable DDL
// instead of a migration tool so the integration tests and dev setups stay
// self-contained.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_requests (
    seq              BIGSERIAL,
    id               TEXT PRIMARY KEY,
    verifier_address TEXT NOT NULL,
    verifier_name    TEXT NOT NULL DEFAULT '',
    subject_name     TEXT NOT NULL,
    field            TEXT NOT NULL,
    status           TEXT NOT NULL,
    requested_at     TIMESTAMPTZ NOT NULL,
    approved_at      TIMESTAMPTZ,
    expires_at       TIMESTAMPTZ,
    completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_requests_subject ON verification_requests (subject_name, seq);
CREATE INDEX IF NOT EXISTS idx_requests_open ON verification_requests (seq) WHERE status IN ('pending', 'approved');

CREATE TABLE IF NOT EXISTS approvals (
    request_id     TEXT PRIMARY KEY REFERENCES verification_requests (id),
    mode           TEXT NOT NULL,
    value_hash     TEXT NOT NULL,
    verified_owner TEXT NOT NULL DEFAULT '',
    approved_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS verifications (
    seq             BIGSERIAL,
    id              TEXT PRIMARY KEY,
    subject_name    TEXT NOT NULL,
    field           TEXT NOT NULL,
    field_hash      TEXT NOT NULL,
    verifier_type   TEXT NOT NULL DEFAULT '',
    verifier_id     TEXT NOT NULL,
    verifier_name   TEXT NOT NULL DEFAULT '',
    owner_snapshot  TEXT NOT NULL DEFAULT '',
    expiry_snapshot TIMESTAMPTZ,
    method_url      TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    revoked_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_verifications_subject ON verifications (subject_name, seq);
`

// Init applies the schema.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req request.VerificationRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_requests
			(id, verifier_address, verifier_name, subject_name, field, status,
			 requested_at, approved_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.VerifierAddress, req.VerifierName, req.SubjectName,
		string(req.Field), string(req.Status),
		req.RequestedAt, req.ApprovedAt, req.ExpiresAt, req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (request.VerificationRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, verifier_address, verifier_name, subject_name, field, status,
		       requested_at, approved_at, expires_at, completed_at
		FROM verification_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return request.VerificationRequest{}, ErrNotFound
	}
	if err != nil {
		return request.VerificationRequest{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, req request.VerificationRequest) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE verification_requests
		SET status = $2, approved_at = $3, expires_at = $4, completed_at = $5
		WHERE id = $1`,
		req.ID, string(req.Status), req.ApprovedAt, req.ExpiresAt, req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRequestsBySubject(ctx context.Context, subjectName string) ([]request.VerificationRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, verifier_address, verifier_name, subject_name, field, status,
		       requested_at, approved_at, expires_at, completed_at
		FROM verification_requests WHERE subject_name = $1 ORDER BY seq`, subjectName)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) ListOpenRequests(ctx context.Context) ([]request.VerificationRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, verifier_address, verifier_name, subject_name, field, status,
		       requested_at, approved_at, expires_at, completed_at
		FROM verification_requests WHERE status IN ('pending', 'approved') ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) SaveApproval(ctx context.Context, approval Approval) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO approvals (request_id, mode, value_hash, verified_owner, approved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO UPDATE
		SET mode = EXCLUDED.mode, value_hash = EXCLUDED.value_hash,
		    verified_owner = EXCLUDED.verified_owner, approved_at = EXCLUDED.approved_at`,
		approval.RequestID, string(approval.Mode), approval.ValueHash,
		approval.VerifiedOwner, approval.ApprovedAt,
	)
	if err != nil {
		return fmt.Errorf("save approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApproval(ctx context.Context, requestID string) (Approval, error) {
	var (
		approval Approval
		mode     string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT request_id, mode, value_hash, verified_owner, approved_at
		FROM approvals WHERE request_id = $1`, requestID).
		Scan(&approval.RequestID, &mode, &approval.ValueHash, &approval.VerifiedOwner, &approval.ApprovedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	if err != nil {
		return Approval{}, fmt.Errorf("get approval: %w", err)
	}
	approval.Mode = reveal.Mode(mode)
	return approval, nil
}

func (s *PostgresStore) CreateVerification(ctx context.Context, v request.Verification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verifications
			(id, subject_name, field, field_hash, verifier_type, verifier_id,
			 verifier_name, owner_snapshot, expiry_snapshot, method_url, status,
			 created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		v.ID, v.SubjectName, v.Field, v.FieldHash, v.VerifierType, v.VerifierID,
		v.VerifierName, v.OwnerSnapshot, v.ExpirySnapshot, v.MethodURL, v.Status,
		v.CreatedAt, v.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVerificationsBySubject(ctx context.Context, subjectName string) ([]request.Verification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subject_name, field, field_hash, verifier_type, verifier_id,
		       verifier_name, owner_snapshot, expiry_snapshot, method_url, status,
		       created_at, revoked_at
		FROM verifications WHERE subject_name = $1 ORDER BY seq`, subjectName)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []request.Verification
	for rows.Next() {
		var v request.Verification
		if err := rows.Scan(&v.ID, &v.SubjectName, &v.Field, &v.FieldHash,
			&v.VerifierType, &v.VerifierID, &v.VerifierName, &v.OwnerSnapshot,
			&v.ExpirySnapshot, &v.MethodURL, &v.Status, &v.CreatedAt, &v.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (request.VerificationRequest, error) {
	var (
		req    request.VerificationRequest
		field  string
		status string
	)
	err := row.Scan(&req.ID, &req.VerifierAddress, &req.VerifierName,
		&req.SubjectName, &field, &status,
		&req.RequestedAt, &req.ApprovedAt, &req.ExpiresAt, &req.CompletedAt)
	if err != nil {
		return request.VerificationRequest{}, err
	}
	req.Field = commitment.FieldType(field)
	req.Status = request.Status(status)
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]request.VerificationRequest, error) {
	var out []request.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
