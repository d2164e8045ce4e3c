package request

import "time"

// Verification is the server-held record of a completed field verification:
// the commitment the verifier attested to, snapshots of the on-chain state
// at attestation time, and derived validity flags. The richer of the two
// historical record shapes; the backend computes the flags.
type Verification struct {
	ID             string     `json:"id"`
	SubjectName    string     `json:"subjectName"`
	Field          string     `json:"field"`
	FieldHash      string     `json:"fieldHash"`
	VerifierType   string     `json:"verifierType,omitempty"`
	VerifierID     string     `json:"verifierId"`
	VerifierName   string     `json:"verifierName,omitempty"`
	OwnerSnapshot  string     `json:"ownerSnapshot,omitempty"`
	ExpirySnapshot *time.Time `json:"expirySnapshot,omitempty"`
	MethodURL      string     `json:"methodUrl,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`

	// Validity flags, derived server-side at read time.
	IsValid          *bool `json:"isValid,omitempty"`
	IsNameValid      *bool `json:"isNameValid,omitempty"`
	IsActive         *bool `json:"isActive,omitempty"`
	OwnershipMatches *bool `json:"ownershipMatches,omitempty"`
	ExpiryValid      *bool `json:"expiryValid,omitempty"`
}

// VerifierAddress aliases VerifierID for callers that think in addresses.
func (v Verification) VerifierAddress() string { return v.VerifierID }

// IsExpired reports whether the expiry snapshot has passed, nil when no
// snapshot was taken.
func (v Verification) IsExpired(now time.Time) *bool {
	if v.ExpirySnapshot == nil {
		return nil
	}
	expired := v.ExpirySnapshot.Before(now)
	return &expired
}
