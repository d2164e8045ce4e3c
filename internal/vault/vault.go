package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"askme/internal/commitment"
	dErrors "askme/pkg/domain-errors"
	"askme/pkg/requestcontext"
)

// Singleton slot keys. Field values use the per-name scheme
// "field:<subjectName>:<fieldType>" so one device can hold independent field
// sets for multiple names.
const (
	keySubjectName   = "subjectName"
	keyVerifiedOwner = "verifiedOwner"
)

func fieldKey(subject string, field commitment.FieldType) string {
	return fmt.Sprintf("field:%s:%s", subject, field)
}

// fieldEnvelope is the stored shape for one field value. The raw value and
// its update time live together so commitments can be re-derived on read
// instead of being persisted past the value's lifetime.
type fieldEnvelope struct {
	Value     string `json:"value"`
	UpdatedAt string `json:"updatedAt"`
}

// Vault mediates all holder-session writes to the secure store. Only holder
// actions go through it; the mutex makes subject switches atomic with respect
// to field and assertion reads.
type Vault struct {
	mu    sync.RWMutex
	store Store
}

func New(store Store) *Vault {
	return &Vault{store: store}
}

// SetField stores the raw value for (subject, field) and returns the derived
// commitment. An existing value is overwritten.
func (v *Vault) SetField(ctx context.Context, subject string, field commitment.FieldType, value string) (commitment.FieldCommitment, error) {
	if subject == "" {
		return commitment.FieldCommitment{}, dErrors.New(dErrors.CodeInvalidInput, "subject name is required")
	}
	if !field.IsValid() {
		return commitment.FieldCommitment{}, dErrors.New(dErrors.CodeInvalidInput, "unsupported field type")
	}
	if value == "" {
		return commitment.FieldCommitment{}, dErrors.New(dErrors.CodeInvalidInput, "field value cannot be empty")
	}

	now := requestcontext.Now(ctx)
	env := fieldEnvelope{Value: value, UpdatedAt: now.Format(time.RFC3339Nano)}
	raw, err := json.Marshal(env)
	if err != nil {
		return commitment.FieldCommitment{}, dErrors.Wrap(dErrors.CodeInternal, "encode field envelope", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Set(ctx, fieldKey(subject, field), string(raw)); err != nil {
		return commitment.FieldCommitment{}, dErrors.Wrap(dErrors.CodeInternal, "store field value", err)
	}

	valueHash, fieldHash := commitment.Compute(field, value)
	return commitment.FieldCommitment{
		Type:      field,
		ValueHash: valueHash,
		FieldHash: fieldHash,
		UpdatedAt: now,
	}, nil
}

// FieldValue returns the raw value for (subject, field), ok=false when unset.
func (v *Vault) FieldValue(ctx context.Context, subject string, field commitment.FieldType) (string, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fieldValueLocked(ctx, subject, field)
}

func (v *Vault) fieldValueLocked(ctx context.Context, subject string, field commitment.FieldType) (string, bool, error) {
	raw, ok, err := v.store.Get(ctx, fieldKey(subject, field))
	if err != nil {
		return "", false, dErrors.Wrap(dErrors.CodeInternal, "read field value", err)
	}
	if !ok {
		return "", false, nil
	}
	var env fieldEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", false, dErrors.Wrap(dErrors.CodeDecoding, "decode field envelope", err)
	}
	return env.Value, true, nil
}

// Commitment re-derives the commitment for (subject, field) from the stored
// raw value. The derived hashes never exist independent of the value.
func (v *Vault) Commitment(ctx context.Context, subject string, field commitment.FieldType) (commitment.FieldCommitment, bool, error) {
	value, ok, err := v.FieldValue(ctx, subject, field)
	if err != nil || !ok {
		return commitment.FieldCommitment{}, false, err
	}
	valueHash, fieldHash := commitment.Compute(field, value)
	return commitment.FieldCommitment{
		Type:      field,
		ValueHash: valueHash,
		FieldHash: fieldHash,
		UpdatedAt: requestcontext.Now(ctx),
	}, true, nil
}

// ClearField destroys the raw value and, with it, the commitment.
func (v *Vault) ClearField(ctx context.Context, subject string, field commitment.FieldType) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Delete(ctx, fieldKey(subject, field)); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "delete field value", err)
	}
	return nil
}

// Subject returns the active subject name, empty when none is selected.
func (v *Vault) Subject(ctx context.Context) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	name, _, err := v.store.Get(ctx, keySubjectName)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "read subject name", err)
	}
	return name, nil
}

// SwitchSubject atomically clears the stale verified-owner slot before the
// new subject becomes visible. A reader can never observe a valid assertion
// for the wrong name.
func (v *Vault) SwitchSubject(ctx context.Context, subject string) error {
	if subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject name is required")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Delete(ctx, keyVerifiedOwner); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "clear verified owner", err)
	}
	if err := v.store.Set(ctx, keySubjectName, subject); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "store subject name", err)
	}
	return nil
}

// VerifiedOwner returns the persisted verified owner address for the active
// subject, empty when no assertion is held.
func (v *Vault) VerifiedOwner(ctx context.Context) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	owner, _, err := v.store.Get(ctx, keyVerifiedOwner)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "read verified owner", err)
	}
	return owner, nil
}

// SetVerifiedOwner persists the owner address after a successful ownership
// verification.
func (v *Vault) SetVerifiedOwner(ctx context.Context, owner string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Set(ctx, keyVerifiedOwner, owner); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "store verified owner", err)
	}
	return nil
}

// ClearVerifiedOwner invalidates the persisted assertion, e.g. on wallet
// disconnect.
func (v *Vault) ClearVerifiedOwner(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Delete(ctx, keyVerifiedOwner); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "clear verified owner", err)
	}
	return nil
}
