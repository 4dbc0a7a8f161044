package cards

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardMarshalJSONUsesWireNames(t *testing.T) {
	reviewedAt := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	card := Card{
		ID:             "card-7",
		Front:          "hund",
		Back:           "dog",
		Difficulty:     -2,
		LastReviewed:   &reviewedAt,
		NextReviewDate: time.Date(2024, 1, 2, 9, 4, 5, 0, time.FixedZone("CET", 3600)),
		History:        []HistoryEntry{{Date: reviewedAt, Recalled: true}},
	}

	encoded, err := json.Marshal(card)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "card-7",
		"front": "hund",
		"back": "dog",
		"difficulty": -2,
		"lastReviewed": "2024-01-02T03:04:05.0000006Z",
		"nextReviewDate": "2024-01-02T08:04:05Z",
		"history": [{"date": "2024-01-02T03:04:05.0000006Z", "recalled": true}]
	}`, string(encoded))
}

func TestCardMarshalJSONWritesEmptyHistoryAndNullReview(t *testing.T) {
	encoded, err := json.Marshal(Card{ID: "fresh", Front: "a", Back: "b", NextReviewDate: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "fresh",
		"front": "a",
		"back": "b",
		"difficulty": 0,
		"lastReviewed": null,
		"nextReviewDate": "1970-01-01T00:00:00Z",
		"history": []
	}`, string(encoded))
}

func TestCardJSONRoundTripKeepsNanoseconds(t *testing.T) {
	next := time.Date(2030, 6, 7, 8, 9, 10, 123456789, time.UTC)
	original := Card{
		ID:             "precise",
		Front:          "f",
		Back:           "b",
		Difficulty:     4,
		NextReviewDate: next,
		History:        []HistoryEntry{{Date: next.Add(-time.Hour), Recalled: false}},
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Card
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}

func TestCardUnmarshalJSONAcceptsLegacyPayload(t *testing.T) {
	payload := `{
		"id": 1700000000123,
		"front": "chat",
		"back": "cat",
		"fimilarity": 2,
		"lastReviewed": 1700000000000,
		"nextReviewDate": 1700086400000,
		"history": [
			{"date": 1699990000000, "known": false},
			{"date": "2023-11-14T22:13:20Z", "known": true}
		]
	}`

	var card Card
	require.NoError(t, json.Unmarshal([]byte(payload), &card))

	assert.Equal(t, CardID("1700000000123"), card.ID)
	assert.Equal(t, 2, card.Difficulty)
	require.NotNil(t, card.LastReviewed)
	assert.True(t, card.LastReviewed.Equal(time.UnixMilli(1700000000000)))
	assert.True(t, card.NextReviewDate.Equal(time.UnixMilli(1700086400000)))
	require.Len(t, card.History, 2)
	assert.False(t, card.History[0].Recalled)
	assert.True(t, card.History[1].Recalled)
	assert.True(t, card.History[1].Date.Equal(time.UnixMilli(1700000000000)))
}

func TestCardUnmarshalJSONPrefersCurrentFieldNames(t *testing.T) {
	payload := `{
		"id": "x",
		"front": "f",
		"back": "b",
		"difficulty": 1,
		"fimilarity": 5,
		"nextReviewDate": "2024-01-01T00:00:00Z",
		"history": [{"date": "2024-01-01T00:00:00Z", "recalled": true, "known": false}]
	}`

	var card Card
	require.NoError(t, json.Unmarshal([]byte(payload), &card))
	assert.Equal(t, 1, card.Difficulty)
	assert.Nil(t, card.LastReviewed)
	require.Len(t, card.History, 1)
	assert.True(t, card.History[0].Recalled)
}

func TestCardUnmarshalJSONFloorsFractionalDifficulty(t *testing.T) {
	var card Card
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","front":"f","back":"b","difficulty":-1.5,"nextReviewDate":"2024-01-01T00:00:00Z"}`), &card))
	assert.Equal(t, -2, card.Difficulty)
	assert.NotNil(t, card.History)
	assert.Empty(t, card.History)
}

func TestCardUnmarshalJSONRejectsMalformedPayloads(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "missing-id", payload: `{"front":"f","back":"b","nextReviewDate":"2024-01-01T00:00:00Z"}`},
		{name: "blank-id", payload: `{"id":"  ","front":"f","back":"b","nextReviewDate":"2024-01-01T00:00:00Z"}`},
		{name: "missing-next-review", payload: `{"id":"x","front":"f","back":"b"}`},
		{name: "bad-timestamp", payload: `{"id":"x","front":"f","back":"b","nextReviewDate":"tomorrow"}`},
		{name: "history-without-date", payload: `{"id":"x","front":"f","back":"b","nextReviewDate":"2024-01-01T00:00:00Z","history":[{"recalled":true}]}`},
		{name: "not-an-object", payload: `[1,2,3]`},
		{name: "millis-out-of-range", payload: `{"id":"x","front":"f","back":"b","nextReviewDate":9300000000000000}`},
		{name: "fractional-millis-out-of-range", payload: `{"id":"x","front":"f","back":"b","nextReviewDate":1e300}`},
		{name: "negative-fractional-millis-out-of-range", payload: `{"id":"x","front":"f","back":"b","nextReviewDate":-9.3e12}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var card Card
			err := json.Unmarshal([]byte(testCase.payload), &card)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestOutcomeText(t *testing.T) {
	encoded, err := Recalled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "recalled", string(encoded))

	var outcome Outcome
	require.NoError(t, outcome.UnmarshalText([]byte("forgot")))
	assert.Equal(t, Forgot, outcome)
	assert.False(t, outcome.Recalled())

	require.ErrorIs(t, outcome.UnmarshalText([]byte("maybe")), ErrValidation)
	_, err = Outcome(0).MarshalText()
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
	assert.Equal(t, Recalled, OutcomeOf(true))
}
