// Package exercise defines the exercise record and the provenance tag that travels
// alongside it through a pipeline run.
package exercise

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Category is a movement family. It selects the file a record is persisted in.
type Category string

const (
	CategoryPush     Category = "push"
	CategoryPull     Category = "pull"
	CategorySquat    Category = "squat"
	CategoryHinge    Category = "hinge"
	CategoryCore     Category = "core"
	CategoryMobility Category = "mobility"
)

// KnownCategories returns the movement families in their canonical order.
func KnownCategories() []Category {
	return []Category{CategoryPush, CategoryPull, CategorySquat, CategoryHinge, CategoryCore, CategoryMobility}
}

// IsKnown reports whether c is one of the fixed movement families.
func (c Category) IsKnown() bool {
	for _, k := range KnownCategories() {
		if c == k {
			return true
		}
	}
	return false
}

// Persisted field names the pipeline writes.
const (
	FieldID            = "id"
	FieldProgressionTo = "progression_to"
	FieldImageURL      = "image_url"
)

// ErrMissingID is returned when a record body has no usable id.
var ErrMissingID = errors.New("record has no id")

// Record is one exercise. The exported fields are a decoded, read-only view used for
// prompt composition; the persisted form is the original JSON body, which keeps every
// field (known or not) in its original key order. Only progression_to and image_url
// are ever rewritten, through the setters below.
type Record struct {
	ID                string   `json:"id"`
	Category          Category `json:"category"`
	MovementPattern   string   `json:"movement_pattern"`
	NameEN            string   `json:"name_en"`
	NameFR            string   `json:"name_fr"`
	InstructionsEN    string   `json:"instructions_en"`
	InstructionsFR    string   `json:"instructions_fr"`
	Difficulty        int      `json:"difficulty"`
	EquipmentRequired bool     `json:"equipment_required"`
	Contraindications []string `json:"contraindications"`

	progressionTo *string
	imageURL      *string

	body []byte
}

// Decode parses a single JSON object into a Record, retaining the body verbatim
// (compacted) for order-preserving persistence.
func Decode(raw []byte) (*Record, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	body := compact.Bytes()

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("record is not a JSON object")
	}

	rec := &Record{}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	id := parsed.Get(FieldID)
	if id.Type != gjson.String || strings.TrimSpace(id.Str) == "" {
		return nil, ErrMissingID
	}

	rec.progressionTo = nullableString(parsed.Get(FieldProgressionTo))
	rec.imageURL = nullableString(parsed.Get(FieldImageURL))
	rec.body = body

	return rec, nil
}

func nullableString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

// ProgressionTo returns the successor id, or "" for a terminal/isolated exercise.
func (r *Record) ProgressionTo() string {
	if r.progressionTo == nil {
		return ""
	}
	return *r.progressionTo
}

// ImageURL returns the asset reference, or "" when none has been stamped.
func (r *Record) ImageURL() string {
	if r.imageURL == nil {
		return ""
	}
	return *r.imageURL
}

// HasImage reports whether an asset reference is present.
func (r *Record) HasImage() bool {
	return r.imageURL != nil && *r.imageURL != ""
}

// SetProgressionTo sets the successor id; "" writes an explicit null.
// Returns true when the persisted body changed.
func (r *Record) SetProgressionTo(next string) (bool, error) {
	current := gjson.GetBytes(r.body, FieldProgressionTo)
	if next == "" {
		if current.Exists() && current.Type == gjson.Null {
			return false, nil
		}
		body, err := sjson.SetRawBytes(r.body, FieldProgressionTo, []byte("null"))
		if err != nil {
			return false, fmt.Errorf("set %s: %w", FieldProgressionTo, err)
		}
		r.body = body
		r.progressionTo = nil
		return true, nil
	}

	if current.Type == gjson.String && current.Str == next {
		return false, nil
	}
	body, err := sjson.SetBytes(r.body, FieldProgressionTo, next)
	if err != nil {
		return false, fmt.Errorf("set %s: %w", FieldProgressionTo, err)
	}
	r.body = body
	r.progressionTo = &next
	return true, nil
}

// SetImageURL stamps the public asset reference.
// Returns true when the persisted body changed.
func (r *Record) SetImageURL(url string) (bool, error) {
	current := gjson.GetBytes(r.body, FieldImageURL)
	if current.Type == gjson.String && current.Str == url {
		return false, nil
	}
	body, err := sjson.SetBytes(r.body, FieldImageURL, url)
	if err != nil {
		return false, fmt.Errorf("set %s: %w", FieldImageURL, err)
	}
	r.body = body
	r.imageURL = &url
	return true, nil
}

// Body returns a copy of the persisted JSON object (compact form).
func (r *Record) Body() []byte {
	out := make([]byte, len(r.body))
	copy(out, r.body)
	return out
}

// MarshalJSON emits the persisted body, so a Record serializes exactly as stored.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Body(), nil
}

// DisplayName picks the primary name, falling back to the secondary name and then the id.
func (r *Record) DisplayName() string {
	if s := strings.TrimSpace(r.NameEN); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.NameFR); s != "" {
		return s
	}
	return r.ID
}

// Instructions picks the primary instruction text, falling back to the secondary text.
func (r *Record) Instructions() string {
	if s := strings.TrimSpace(r.InstructionsEN); s != "" {
		return s
	}
	return strings.TrimSpace(r.InstructionsFR)
}
