package collection

import (
	"encoding/base64"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Cursor is the resume point of a paginated query: the ordering value of the
// last item returned together with that item's identifier.
type Cursor struct {
	Value bson.RawValue
	ID    string
}

type cursorWire struct {
	Value bson.RawValue `bson:"v"`
	ID    string        `bson:"id"`
}

var nullValue = bson.RawValue{Type: bson.TypeNull}

func (c *Cursor) value() bson.RawValue {
	if c.Value.Type == 0 {
		return nullValue
	}
	return c.Value
}

// Encode returns the opaque, URL-safe form of the cursor.
func (c *Cursor) Encode() (string, error) {
	raw, err := bson.Marshal(cursorWire{Value: c.value(), ID: c.ID})
	if err != nil {
		return "", apperrors.Wrapf(err, "[Cursor Encode]")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses the output of Cursor.Encode. An empty string yields a nil cursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor encoding: %v", err)
	}
	if err := bson.Raw(raw).Validate(); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor payload: %v", err)
	}
	var w cursorWire
	if err := bson.Unmarshal(raw, &w); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor payload: %v", err)
	}
	if w.ID == "" {
		return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor without document id")
	}
	return &Cursor{Value: w.Value, ID: w.ID}, nil
}

// CursorFor builds the cursor that resumes after doc for the given order field.
func CursorFor(doc bson.Raw, orderField string) (*Cursor, error) {
	idValue, err := lookup(doc, IDField)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[CursorFor] document id")
	}
	id, ok := idValue.StringValueOK()
	if !ok {
		return nil, apperrors.Kind(apperrors.ErrInvalidQuery, "document id is not a string")
	}
	value := nullValue
	if v, err := lookup(doc, orderField); err == nil {
		value = v
	}
	return &Cursor{Value: value, ID: id}, nil
}

// Lookup resolves a dotted field path inside doc.
func Lookup(doc bson.Raw, field string) (bson.RawValue, error) {
	return lookup(doc, field)
}

func lookup(doc bson.Raw, field string) (bson.RawValue, error) {
	return doc.LookupErr(strings.Split(field, ".")...)
}
