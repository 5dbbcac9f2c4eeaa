package exercise

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{
  "id": "push_knee",
  "name_fr": "Pompes à genoux",
  "name_en": "Knee push-up",
  "category": "push",
  "movement_pattern": "horizontal_push",
  "difficulty": 1,
  "reps": 10,
  "contraindications": ["wrist"],
  "instructions_en": "Lower your chest <slowly>.",
  "progression_to": null
}`

func TestDecode(t *testing.T) {
	rec, err := Decode([]byte(sampleBody))
	require.NoError(t, err)

	assert.Equal(t, "push_knee", rec.ID)
	assert.Equal(t, CategoryPush, rec.Category)
	assert.Equal(t, "horizontal_push", rec.MovementPattern)
	assert.Equal(t, 1, rec.Difficulty)
	assert.Equal(t, []string{"wrist"}, rec.Contraindications)
	assert.Equal(t, "", rec.ProgressionTo())
	assert.False(t, rec.HasImage())
}

func TestDecode_Rejects(t *testing.T) {
	t.Run("not an object", func(t *testing.T) {
		_, err := Decode([]byte(`["push_knee"]`))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Decode([]byte(`{"id": `))
		assert.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := Decode([]byte(`{"name_en": "x"}`))
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("numeric id", func(t *testing.T) {
		_, err := Decode([]byte(`{"id": 7}`))
		assert.ErrorIs(t, err, ErrMissingID)
	})
}

func TestRecord_BodyKeepsKeyOrderAndUnknownFields(t *testing.T) {
	rec, err := Decode([]byte(sampleBody))
	require.NoError(t, err)

	body := string(rec.Body())
	assert.Contains(t, body, `"reps":10`)
	assert.Contains(t, body, `<slowly>`, "HTML characters must not be escaped")
	assert.Contains(t, body, "à", "non-ASCII kept raw")
	assert.Less(t, strings.Index(body, `"name_fr"`), strings.Index(body, `"name_en"`))
}

func TestRecord_SetImageURL(t *testing.T) {
	rec, err := Decode([]byte(sampleBody))
	require.NoError(t, err)

	changed, err := rec.SetImageURL("/icons/exercises/push_knee.png")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.HasImage())
	assert.Equal(t, "/icons/exercises/push_knee.png", rec.ImageURL())

	body := string(rec.Body())
	assert.Greater(t, strings.Index(body, `"image_url"`), strings.Index(body, `"progression_to"`), "new keys append at the end")

	changed, err = rec.SetImageURL("/icons/exercises/push_knee.png")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRecord_SetProgressionTo(t *testing.T) {
	rec, err := Decode([]byte(`{"id":"a","name_en":"A"}`))
	require.NoError(t, err)

	changed, err := rec.SetProgressionTo("b")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "b", rec.ProgressionTo())
	assert.Equal(t, `{"id":"a","name_en":"A","progression_to":"b"}`, string(rec.Body()))

	changed, err = rec.SetProgressionTo("")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `{"id":"a","name_en":"A","progression_to":null}`, string(rec.Body()))

	changed, err = rec.SetProgressionTo("")
	require.NoError(t, err)
	assert.False(t, changed, "explicit null is already in place")
}

func TestRecord_SetProgressionTo_WritesExplicitNullWhenAbsent(t *testing.T) {
	rec, err := Decode([]byte(`{"id":"a"}`))
	require.NoError(t, err)

	changed, err := rec.SetProgressionTo("")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, `{"id":"a","progression_to":null}`, string(rec.Body()))
}

func TestRecord_Fallbacks(t *testing.T) {
	rec, err := Decode([]byte(`{"id":"cat_cow","name_fr":"Chat-vache","instructions_fr":"Alterner."}`))
	require.NoError(t, err)
	assert.Equal(t, "Chat-vache", rec.DisplayName())
	assert.Equal(t, "Alterner.", rec.Instructions())

	bare, err := Decode([]byte(`{"id":"kegel"}`))
	require.NoError(t, err)
	assert.Equal(t, "kegel", bare.DisplayName())
	assert.Equal(t, "", bare.Instructions())
}

func TestCategory_IsKnown(t *testing.T) {
	assert.True(t, CategoryMobility.IsKnown())
	assert.False(t, Category("arms").IsKnown())
}
