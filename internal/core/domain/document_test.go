package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

func rawFields(t *testing.T, doc string) map[string]json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(doc), &fields))
	return fields
}

func TestDecodeUserDocument(t *testing.T) {
	t.Run("Success: well typed fields are decoded", func(t *testing.T) {
		doc := domain.DecodeUserDocument(rawFields(t, `{
			"totals": {"2024-03-10": 25},
			"streakCount": 4,
			"streakLastActive": "Sun Mar 10 2024",
			"isPremium": true,
			"tasks": [{"id": "t1", "text": "write", "done": false, "date": null}],
			"presets": [],
			"notepadContent": "hello",
			"weeklyGoalMinutes": 900,
			"email": "a@b.c"
		}`))

		assert.Equal(t, 25.0, doc.Totals.Day("2024-03-10"))
		require.NotNil(t, doc.StreakCount)
		assert.Equal(t, 4, *doc.StreakCount)
		require.NotNil(t, doc.StreakLastActive)
		assert.Equal(t, "2024-03-10", *doc.StreakLastActive)
		require.NotNil(t, doc.IsPremium)
		assert.True(t, *doc.IsPremium)
		require.Len(t, doc.Tasks, 1)
		assert.Nil(t, doc.Tasks[0].Date)
		assert.NotNil(t, doc.Presets)
		assert.Empty(t, doc.Presets)
		assert.Equal(t, "hello", *doc.NotepadContent)
		assert.Equal(t, 900, *doc.WeeklyGoal)
		assert.Equal(t, "a@b.c", *doc.Email)
	})

	t.Run("Malformed and null fields are skipped", func(t *testing.T) {
		doc := domain.DecodeUserDocument(rawFields(t, `{
			"totals": "oops",
			"streakCount": "four",
			"streakLastActive": "someday",
			"isPremium": null,
			"tasks": {"not": "a list"},
			"weeklyGoalMinutes": 12.5
		}`))

		assert.Nil(t, doc.Totals)
		assert.Nil(t, doc.StreakCount)
		assert.Nil(t, doc.StreakLastActive)
		assert.Nil(t, doc.IsPremium)
		assert.Nil(t, doc.Tasks)
		assert.Nil(t, doc.Presets)
		assert.Nil(t, doc.WeeklyGoal)
	})

	t.Run("Empty document", func(t *testing.T) {
		doc := domain.DecodeUserDocument(nil)
		assert.Equal(t, domain.UserDocument{}, doc)
	})
}

func TestDocumentPatch_ValidateClientPatch(t *testing.T) {
	t.Run("Success: timestamps are dropped", func(t *testing.T) {
		clean, err := domain.DocumentPatch{
			domain.FieldNotepadContent: "x",
			domain.FieldUpdatedAt:      "2020-01-01",
		}.ValidateClientPatch()

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentPatch{domain.FieldNotepadContent: "x"}, clean)
	})

	t.Run("Error: premium fields are webhook only", func(t *testing.T) {
		for _, field := range []string{
			domain.FieldIsPremium,
			domain.FieldPremiumSince,
			domain.FieldStripeSessionID,
		} {
			_, err := domain.DocumentPatch{field: true, domain.FieldTasks: []any{}}.ValidateClientPatch()
			assert.ErrorIs(t, err, domain.ErrForbiddenField, field)
		}
	})

	t.Run("Error: nothing left to write", func(t *testing.T) {
		_, err := domain.DocumentPatch{domain.FieldCreatedAt: "x"}.ValidateClientPatch()
		assert.ErrorIs(t, err, domain.ErrEmptyPatch)

		_, err = domain.DocumentPatch{}.ValidateClientPatch()
		assert.ErrorIs(t, err, domain.ErrEmptyPatch)
	})
}

func TestTotalsPatch(t *testing.T) {
	totals := domain.DailyTotals{"2024-03-10": 25}
	patch := domain.TotalsPatch(totals, domain.StreakState{Count: 2, LastActive: "2024-03-10"}, "me@vibedesk.app")

	totals.Add("2024-03-10", 5)

	fields, err := patch.Fields()
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-03-10": 25}`, string(fields[domain.FieldTotals]), "patch holds a snapshot")
	assert.JSONEq(t, `2`, string(fields[domain.FieldStreakCount]))
	assert.JSONEq(t, `"2024-03-10"`, string(fields[domain.FieldStreakLastActive]))
	assert.JSONEq(t, `"me@vibedesk.app"`, string(fields[domain.FieldEmail]))

	empty := domain.TotalsPatch(domain.DailyTotals{}, domain.StreakState{}, "")
	fields, err = empty.Fields()
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(fields[domain.FieldStreakLastActive]))
	assert.JSONEq(t, `null`, string(fields[domain.FieldEmail]))
}

func TestStoredDocument_MarshalJSON(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := domain.StoredDocument{
		UserID:    "u1",
		Fields:    map[string]json.RawMessage{"isPremium": json.RawMessage(`true`)},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"isPremium": true,
		"createdAt": "2024-03-01T10:00:00Z",
		"updatedAt": "2024-03-01T11:00:00Z"
	}`, string(data))
}

func TestStoredDocument_UnmarshalJSON(t *testing.T) {
	var doc domain.StoredDocument
	err := json.Unmarshal([]byte(`{
		"isPremium": false,
		"notepadContent": "hi",
		"createdAt": "2024-03-01T10:00:00Z",
		"updatedAt": "not a time"
	}`), &doc)
	require.NoError(t, err)

	assert.True(t, doc.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, doc.UpdatedAt.IsZero())
	assert.NotContains(t, doc.Fields, domain.FieldCreatedAt)
	assert.Contains(t, doc.Fields, domain.FieldUpdatedAt)
	assert.JSONEq(t, `"hi"`, string(doc.Fields[domain.FieldNotepadContent]))
}

func TestPremiumActivation_Patch(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	patch := domain.PremiumActivation{
		UserID:    "u1",
		Source:    "stripe",
		SessionID: "cs_test_1",
		At:        at,
	}.Patch()

	assert.Equal(t, true, patch[domain.FieldIsPremium])
	assert.Equal(t, at, patch[domain.FieldPremiumSince])
	assert.Equal(t, "stripe", patch[domain.FieldPremiumSource])
	assert.Nil(t, patch[domain.FieldStripeCustomerID])
	assert.Equal(t, "cs_test_1", patch[domain.FieldStripeSessionID])
}
