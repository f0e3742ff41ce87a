package types

// NativeType is a column type as reported by the MySQL protocol. Other
// engines translate their declared types onto this set.
type NativeType int

const (
	TypeDecimal NativeType = iota
	TypeTiny
	TypeShort
	TypeLong
	TypeFloat
	TypeDouble
	TypeNull
	TypeTimestamp
	TypeLongLong
	TypeInt24
	TypeDate
	TypeTime
	TypeDateTime
	TypeYear
	TypeNewDate
	TypeVarChar
	TypeBit
	TypeTimestamp2
	TypeDateTime2
	TypeTime2
	TypeJSON
	TypeNewDecimal
	TypeEnum
	TypeSet
	TypeTinyBlob
	TypeMediumBlob
	TypeLongBlob
	TypeBlob
	TypeVarString
	TypeString
	TypeGeometry
)

var nativeTypeNames = [...]string{
	TypeDecimal:    "DECIMAL",
	TypeTiny:       "TINY",
	TypeShort:      "SHORT",
	TypeLong:       "LONG",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeNull:       "NULL",
	TypeTimestamp:  "TIMESTAMP",
	TypeLongLong:   "LONGLONG",
	TypeInt24:      "INT24",
	TypeDate:       "DATE",
	TypeTime:       "TIME",
	TypeDateTime:   "DATETIME",
	TypeYear:       "YEAR",
	TypeNewDate:    "NEWDATE",
	TypeVarChar:    "VARCHAR",
	TypeBit:        "BIT",
	TypeTimestamp2: "TIMESTAMP2",
	TypeDateTime2:  "DATETIME2",
	TypeTime2:      "TIME2",
	TypeJSON:       "JSON",
	TypeNewDecimal: "NEWDECIMAL",
	TypeEnum:       "ENUM",
	TypeSet:        "SET",
	TypeTinyBlob:   "TINY_BLOB",
	TypeMediumBlob: "MEDIUM_BLOB",
	TypeLongBlob:   "LONG_BLOB",
	TypeBlob:       "BLOB",
	TypeVarString:  "VAR_STRING",
	TypeString:     "STRING",
	TypeGeometry:   "GEOMETRY",
}

func (t NativeType) String() string {
	if t >= 0 && int(t) < len(nativeTypeNames) {
		return nativeTypeNames[t]
	}
	return "UNKNOWN"
}

// Temporal reports whether values of this type are dates or times.
func (t NativeType) Temporal() bool {
	switch t {
	case TypeTimestamp, TypeDate, TypeTime, TypeDateTime, TypeYear, TypeNewDate,
		TypeTimestamp2, TypeDateTime2, TypeTime2:
		return true
	}
	return false
}

// TimeOfDay reports whether the type carries only a time, no date.
func (t NativeType) TimeOfDay() bool {
	return t == TypeTime || t == TypeTime2
}

// ColumnFlags are the column attributes that influence the mapping.
type ColumnFlags uint8

const (
	FlagBinary ColumnFlags = 1 << iota
	FlagUnsigned
)

// ColumnType is the wire view of a result column: the display name
// reported in metadata and the value kind its byte payloads decode to.
type ColumnType struct {
	Native   NativeType
	TypeName string
	Field    Kind
	Unsigned bool
}

// MapColumnType maps a native column type onto its wire representation.
// Blob-family columns only decode to blobs when they carry the binary
// flag; text stored in them is reported as a string.
func MapColumnType(native NativeType, flags ColumnFlags) ColumnType {
	ct := ColumnType{
		Native:   native,
		TypeName: native.String(),
		Unsigned: flags&FlagUnsigned != 0,
	}
	switch native {
	case TypeDecimal, TypeFloat, TypeDouble, TypeNewDecimal:
		ct.Field = KindDouble
	case TypeTiny, TypeBit:
		ct.Field = KindBoolean
	case TypeShort, TypeLong, TypeLongLong, TypeInt24:
		ct.Field = KindLong
	case TypeNull:
		ct.Field = KindIsNull
	case TypeTinyBlob, TypeMediumBlob, TypeLongBlob, TypeBlob:
		if flags&FlagBinary != 0 {
			ct.Field = KindBlob
		} else {
			ct.Field = KindString
		}
	default:
		ct.Field = KindString
	}
	return ct
}
