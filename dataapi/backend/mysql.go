package backend

import (
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// Database type names as reported by the MySQL driver's column types. Text
// and binary variants of a native type are reported under different names.
var mysqlNativeTypes = map[string]types.NativeType{
	"BIT":        types.TypeBit,
	"TINYINT":    types.TypeTiny,
	"SMALLINT":   types.TypeShort,
	"MEDIUMINT":  types.TypeInt24,
	"INT":        types.TypeLong,
	"BIGINT":     types.TypeLongLong,
	"FLOAT":      types.TypeFloat,
	"DOUBLE":     types.TypeDouble,
	"DECIMAL":    types.TypeNewDecimal,
	"NULL":       types.TypeNull,
	"DATE":       types.TypeDate,
	"TIME":       types.TypeTime,
	"DATETIME":   types.TypeDateTime,
	"TIMESTAMP":  types.TypeTimestamp,
	"YEAR":       types.TypeYear,
	"JSON":       types.TypeJSON,
	"ENUM":       types.TypeEnum,
	"SET":        types.TypeSet,
	"GEOMETRY":   types.TypeGeometry,
	"CHAR":       types.TypeString,
	"BINARY":     types.TypeString,
	"VARCHAR":    types.TypeVarString,
	"VARBINARY":  types.TypeVarString,
	"TINYTEXT":   types.TypeTinyBlob,
	"TINYBLOB":   types.TypeTinyBlob,
	"TEXT":       types.TypeBlob,
	"BLOB":       types.TypeBlob,
	"MEDIUMTEXT": types.TypeMediumBlob,
	"MEDIUMBLOB": types.TypeMediumBlob,
	"LONGTEXT":   types.TypeLongBlob,
	"LONGBLOB":   types.TypeLongBlob,
}

var mysqlBinaryTypes = map[string]bool{
	"BINARY":     true,
	"VARBINARY":  true,
	"TINYBLOB":   true,
	"BLOB":       true,
	"MEDIUMBLOB": true,
	"LONGBLOB":   true,
}

type mysqlDialect struct{}

func (mysqlDialect) columnType(name string) types.ColumnType {
	var flags types.ColumnFlags
	if rest, ok := strings.CutPrefix(name, "UNSIGNED "); ok {
		flags |= types.FlagUnsigned
		name = rest
	}
	if mysqlBinaryTypes[name] {
		flags |= types.FlagBinary
	}
	native, ok := mysqlNativeTypes[name]
	if !ok {
		native = types.TypeVarString
	}
	return types.MapColumnType(native, flags)
}

func (mysqlDialect) useStatement(database string) string {
	return "USE `" + strings.ReplaceAll(database, "`", "``") + "`"
}
