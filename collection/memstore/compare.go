package memstore

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// typeClass follows the server's cross-type sort order so that memstore and
// mongostore return the same sequence for the same query.
func typeClass(v bson.RawValue) int {
	switch v.Type {
	case bson.TypeMinKey:
		return 0
	case 0, bson.TypeNull, bson.TypeUndefined:
		return 1
	case bson.TypeInt32, bson.TypeInt64, bson.TypeDouble, bson.TypeDecimal128:
		return 2
	case bson.TypeString, bson.TypeSymbol:
		return 3
	case bson.TypeEmbeddedDocument:
		return 4
	case bson.TypeArray:
		return 5
	case bson.TypeBinary:
		return 6
	case bson.TypeObjectID:
		return 7
	case bson.TypeBoolean:
		return 8
	case bson.TypeDateTime:
		return 9
	case bson.TypeTimestamp:
		return 10
	case bson.TypeRegex:
		return 11
	case bson.TypeMaxKey:
		return 13
	}
	return 12
}

// compare orders two values; values of different classes order by class.
func compare(a, b bson.RawValue) int {
	ca, cb := typeClass(a), typeClass(b)
	if ca != cb {
		return cmpInt(int64(ca), int64(cb))
	}

	switch ca {
	case 0, 1, 13:
		return 0
	case 2:
		return compareNumbers(a, b)
	case 3:
		return strings.Compare(stringOf(a), stringOf(b))
	case 6:
		_, da := a.Binary()
		_, db := b.Binary()
		return bytes.Compare(da, db)
	case 7:
		oa, ob := a.ObjectID(), b.ObjectID()
		return bytes.Compare(oa[:], ob[:])
	case 8:
		return cmpBool(a.Boolean(), b.Boolean())
	case 9:
		return cmpInt(a.DateTime(), b.DateTime())
	case 10:
		ta, ia := a.Timestamp()
		tb, ib := b.Timestamp()
		if ta != tb {
			return cmpInt(int64(ta), int64(tb))
		}
		return cmpInt(int64(ia), int64(ib))
	}
	return bytes.Compare(a.Value, b.Value)
}

func compareNumbers(a, b bson.RawValue) int {
	if isInteger(a) && isInteger(b) {
		return cmpInt(a.AsInt64(), b.AsInt64())
	}
	fa, fb := floatOf(a), floatOf(b)
	switch {
	case math.IsNaN(fa) && math.IsNaN(fb):
		return 0
	case math.IsNaN(fa):
		return -1
	case math.IsNaN(fb):
		return 1
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func isInteger(v bson.RawValue) bool {
	return v.Type == bson.TypeInt32 || v.Type == bson.TypeInt64
}

func floatOf(v bson.RawValue) float64 {
	switch v.Type {
	case bson.TypeDouble:
		return v.Double()
	case bson.TypeInt32:
		return float64(v.Int32())
	case bson.TypeInt64:
		return float64(v.Int64())
	case bson.TypeDecimal128:
		f, err := strconv.ParseFloat(v.Decimal128().String(), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func stringOf(v bson.RawValue) string {
	if v.Type == bson.TypeSymbol {
		return v.Symbol()
	}
	return v.StringValue()
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
