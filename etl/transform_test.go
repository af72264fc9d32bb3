package etl

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(records ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		out[i] = json.RawMessage(r)
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestTransform_MapsFields(t *testing.T) {
	tr := NewTransformer(WithTransformClock(fixedClock))

	emails := tr.Transform(raw(`{
		"id": "msg-1",
		"thread_id": "thr-1",
		"subject": "Quarterly report",
		"body": "<p>Numbers attached</p>",
		"from": [{"name": "Ana Ruiz", "email": "ana@example.com"}, {"name": "Other", "email": "o@example.com"}],
		"to": [{"name": "Sam", "email": "sam@example.com"}],
		"date": 1710000000
	}`))

	require.Len(t, emails, 1)
	e := emails[0]
	assert.Equal(t, "msg-1", e.ID)
	require.NotNil(t, e.ThreadID)
	assert.Equal(t, "thr-1", *e.ThreadID)
	assert.Equal(t, "Quarterly report", e.Subject)
	assert.Equal(t, "<p>Numbers attached</p>", e.Body)
	assert.Equal(t, "Ana Ruiz", e.FromName)
	assert.Equal(t, "ana@example.com", e.FromEmail)
	assert.Equal(t, "Sam", e.ToName)
	assert.Equal(t, "sam@example.com", e.ToEmail)
	require.NotNil(t, e.Date)
	assert.Equal(t, int64(1710000000), *e.Date)
	require.NotNil(t, e.ProcessedAt)
	assert.True(t, fixedClock().Equal(*e.ProcessedAt))
}

func TestTransform_Defaults(t *testing.T) {
	tr := NewTransformer()

	emails := tr.Transform(raw(`{"id": "msg-2", "from": [{"email": "a@b.c"}]}`))

	require.Len(t, emails, 1)
	e := emails[0]
	assert.Nil(t, e.ThreadID)
	assert.Nil(t, e.Date)
	assert.Empty(t, e.Subject)
	assert.Empty(t, e.Body)
	assert.Empty(t, e.FromName)
	assert.Empty(t, e.ToName)
	assert.Empty(t, e.ToEmail)
}

func TestTransform_DropsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{name: "malformed json", record: `{"id": `},
		{name: "not an object", record: `42`},
		{name: "missing id", record: `{"from": [{"email": "a@b.c"}]}`},
		{name: "empty id", record: `{"id": "", "from": [{"email": "a@b.c"}]}`},
		{name: "missing from", record: `{"id": "m"}`},
		{name: "empty from", record: `{"id": "m", "from": []}`},
		{name: "malformed sender address", record: `{"id": "m", "from": [{"email": "not-an-address"}]}`},
		{name: "malformed recipient address", record: `{"id": "m", "from": [{"email": "a@b.c"}], "to": [{"email": "nope"}]}`},
		{name: "non-integer date", record: `{"id": "m", "from": [{"email": "a@b.c"}], "date": "yesterday"}`},
	}

	tr := NewTransformer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, tr.Transform(raw(tt.record)))
		})
	}
}

func TestTransform_KeepsOrderAcrossDrops(t *testing.T) {
	tr := NewTransformer()

	emails := tr.Transform(raw(
		`{"id": "a", "from": [{"email": "a@x.com"}]}`,
		`{"id": "b"}`,
		`{"id": "c", "from": [{"email": "c@x.com"}]}`,
	))

	require.Len(t, emails, 2)
	assert.Equal(t, "a", emails[0].ID)
	assert.Equal(t, "c", emails[1].ID)
}

func TestTransform_Empty(t *testing.T) {
	assert.Empty(t, NewTransformer().Transform(nil))
}
