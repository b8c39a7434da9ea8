package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDocumentNotFound = errors.New("user document not found")
	ErrForbiddenField   = errors.New("field can only be written by the payment webhook")
	ErrEmptyPatch       = errors.New("patch has no fields")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// Remote document field names.
const (
	FieldTotals           = "totals"
	FieldStreakCount      = "streakCount"
	FieldStreakLastActive = "streakLastActive"
	FieldIsPremium        = "isPremium"
	FieldTasks            = "tasks"
	FieldPresets          = "presets"
	FieldNotepadContent   = "notepadContent"
	FieldWeeklyGoal       = "weeklyGoalMinutes"
	FieldEmail            = "email"
	FieldCreatedAt        = "createdAt"
	FieldUpdatedAt        = "updatedAt"
	FieldPremiumSince     = "premiumSince"
	FieldPremiumSource    = "premiumSource"
	FieldStripeCustomerID = "stripeCustomerId"
	FieldStripeSessionID  = "stripeSessionId"
)

// webhookOnlyFields may only be set by the payment flow.
var webhookOnlyFields = map[string]bool{
	FieldIsPremium:        true,
	FieldPremiumSince:     true,
	FieldPremiumSource:    true,
	FieldStripeCustomerID: true,
	FieldStripeSessionID:  true,
}

// serverFields are stamped by the store and ignored when sent by clients.
var serverFields = map[string]bool{
	FieldCreatedAt: true,
	FieldUpdatedAt: true,
}

// StoredDocument is a full read of a user's remote document.
type StoredDocument struct {
	UserID    string
	Fields    map[string]json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON flattens the stored fields and the store timestamps into one object.
func (d StoredDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		out[k] = v
	}
	if !d.CreatedAt.IsZero() {
		out[FieldCreatedAt] = d.CreatedAt.UTC()
	}
	if !d.UpdatedAt.IsZero() {
		out[FieldUpdatedAt] = d.UpdatedAt.UTC()
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the store timestamps back out of a flattened document.
// UserID is not part of the wire form.
func (d *StoredDocument) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	for name, dst := range map[string]*time.Time{FieldCreatedAt: &d.CreatedAt, FieldUpdatedAt: &d.UpdatedAt} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var at time.Time
		if json.Unmarshal(raw, &at) == nil {
			*dst = at
			delete(fields, name)
		}
	}
	d.Fields = fields
	return nil
}

// DocumentPatch is a merge-write: named fields replace their stored values,
// every other field is left untouched.
type DocumentPatch map[string]any

func (p DocumentPatch) Clone() DocumentPatch {
	out := make(DocumentPatch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Fields returns the patch as raw JSON values.
func (p DocumentPatch) Fields() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(p))
	for k, v := range p {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("patch field %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// ValidateClientPatch rejects empty patches and webhook-only fields, and drops
// store-managed timestamps.
func (p DocumentPatch) ValidateClientPatch() (DocumentPatch, error) {
	clean := make(DocumentPatch, len(p))
	for k, v := range p {
		if webhookOnlyFields[k] {
			return nil, fmt.Errorf("%w: %s", ErrForbiddenField, k)
		}
		if serverFields[k] {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return nil, ErrEmptyPatch
	}
	return clean, nil
}

func TotalsPatch(totals DailyTotals, streak StreakState, email string) DocumentPatch {
	var lastActive any
	if streak.LastActive != "" {
		lastActive = streak.LastActive
	}
	var emailVal any
	if email != "" {
		emailVal = email
	}
	return DocumentPatch{
		FieldTotals:           totals.Clone(),
		FieldStreakCount:      streak.Count,
		FieldStreakLastActive: lastActive,
		FieldEmail:            emailVal,
	}
}

// UserDocument is the typed view of a remote document. Nil fields were absent
// or held a value of the wrong type.
type UserDocument struct {
	Totals           DailyTotals
	StreakCount      *int
	StreakLastActive *string
	IsPremium        *bool
	Tasks            []Task
	Presets          []Preset
	NotepadContent   *string
	WeeklyGoal       *int
	Email            *string
}

// DecodeUserDocument reads every well-typed field of a raw document and
// silently skips the rest.
func DecodeUserDocument(fields map[string]json.RawMessage) UserDocument {
	var doc UserDocument

	var totals DailyTotals
	if decodeField(fields, FieldTotals, &totals) && totals != nil {
		doc.Totals = totals
	}

	var count int
	if decodeField(fields, FieldStreakCount, &count) {
		doc.StreakCount = &count
	}

	var last string
	if decodeField(fields, FieldStreakLastActive, &last) {
		if key, ok := NormalizeDay(last); ok {
			doc.StreakLastActive = &key
		}
	}

	var premium bool
	if decodeField(fields, FieldIsPremium, &premium) {
		doc.IsPremium = &premium
	}

	var tasks []Task
	if decodeField(fields, FieldTasks, &tasks) {
		if tasks == nil {
			tasks = []Task{}
		}
		doc.Tasks = tasks
	}

	var presets []Preset
	if decodeField(fields, FieldPresets, &presets) {
		if presets == nil {
			presets = []Preset{}
		}
		doc.Presets = presets
	}

	var notepad string
	if decodeField(fields, FieldNotepadContent, &notepad) {
		doc.NotepadContent = &notepad
	}

	var goal int
	if decodeField(fields, FieldWeeklyGoal, &goal) {
		doc.WeeklyGoal = &goal
	}

	var email string
	if decodeField(fields, FieldEmail, &email) {
		doc.Email = &email
	}

	return doc
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	return json.Unmarshal(trimmed, dst) == nil
}

// PremiumActivation is the result of a completed checkout.
type PremiumActivation struct {
	UserID     string
	Email      string
	Source     string
	CustomerID string
	SessionID  string
	At         time.Time
}

func (a PremiumActivation) Patch() DocumentPatch {
	var customer any
	if a.CustomerID != "" {
		customer = a.CustomerID
	}
	return DocumentPatch{
		FieldIsPremium:        true,
		FieldPremiumSince:     a.At.UTC(),
		FieldPremiumSource:    a.Source,
		FieldStripeCustomerID: customer,
		FieldStripeSessionID:  a.SessionID,
	}
}
