package collection

import (
	"regexp"

	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// DefaultLimit is applied when a query sets no limit.
	DefaultLimit = 100
	// MaxLimit bounds any explicit limit.
	MaxLimit = 1000
)

// Op is a comparison operator usable in a Filter.
type Op string

const (
	Eq  Op = "=="
	Ne  Op = "!="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
)

func (o Op) valid() bool {
	switch o {
	case Eq, Ne, Lt, Lte, Gt, Gte:
		return true
	}
	return false
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Filter is a single field/operator/value predicate. Multiple filters are ANDed.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Order struct {
	Field     string
	Direction Direction
}

// OrderBy returns an order usable in Query.Order.
func OrderBy(field string, direction Direction) *Order {
	return &Order{Field: field, Direction: direction}
}

// Query describes a filtered, optionally ordered and paginated read.
type Query struct {
	Filters []Filter
	Order   *Order
	Cursor  *Cursor
	Limit   int
}

// Field names are dotted identifiers; anything starting with '$' or carrying
// operator syntax is rejected before it reaches the store.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

func validField(field string) bool {
	return fieldPattern.MatchString(field)
}

// ClampLimit applies DefaultLimit and MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// normalize is the single place where the safety cap and tie-break are enforced.
func normalize(q Query) (StoreQuery, error) {
	sq := StoreQuery{Limit: ClampLimit(q.Limit)}

	for _, f := range q.Filters {
		if !validField(f.Field) {
			return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "filter field %q", f.Field)
		}
		if !f.Op.valid() {
			return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "filter operator %q", f.Op)
		}
		value, err := toRawValue(f.Value)
		if err != nil {
			return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "filter value for %q: %v", f.Field, err)
		}
		sq.Filters = append(sq.Filters, Predicate{Field: f.Field, Op: f.Op, Value: value})
	}

	if q.Order == nil {
		if q.Cursor != nil {
			return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor requires an order")
		}
		return sq, nil
	}

	if !validField(q.Order.Field) {
		return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "order field %q", q.Order.Field)
	}
	if q.Order.Direction != Ascending && q.Order.Direction != Descending {
		return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "order direction %d", q.Order.Direction)
	}

	sq.Sort = append(sq.Sort, SortField{Field: q.Order.Field, Direction: q.Order.Direction})
	if q.Order.Field != IDField {
		sq.Sort = append(sq.Sort, SortField{Field: IDField, Direction: Descending})
	}

	if q.Cursor != nil {
		if q.Cursor.ID == "" {
			return StoreQuery{}, apperrors.Kind(apperrors.ErrInvalidQuery, "cursor without document id")
		}
		id := stringValue(q.Cursor.ID)
		if q.Order.Field == IDField {
			sq.After = []bson.RawValue{id}
		} else {
			sq.After = []bson.RawValue{q.Cursor.value(), id}
		}
	}

	return sq, nil
}

// toRawValue converts a Go value into the BSON value the store will compare against.
func toRawValue(v any) (bson.RawValue, error) {
	if rv, ok := v.(bson.RawValue); ok {
		return rv, nil
	}
	raw, err := bson.Marshal(bson.D{{Key: "v", Value: v}})
	if err != nil {
		return bson.RawValue{}, err
	}
	return bson.Raw(raw).LookupErr("v")
}

func stringValue(s string) bson.RawValue {
	rv, _ := toRawValue(s)
	return rv
}
