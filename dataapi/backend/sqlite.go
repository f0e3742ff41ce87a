package backend

import (
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/tomyedwab/dataapi/dataapi/types"
)

type sqliteDialect struct{}

// columnType follows SQLite's type affinity rules for declared column
// types. Expressions have no declared type and are reported as strings.
func (sqliteDialect) columnType(decl string) types.ColumnType {
	decl = strings.ToUpper(decl)
	switch {
	case decl == "":
		return types.MapColumnType(types.TypeVarString, 0)
	case strings.Contains(decl, "BOOL"):
		return types.MapColumnType(types.TypeTiny, 0)
	case strings.Contains(decl, "DATETIME"):
		return types.MapColumnType(types.TypeDateTime, 0)
	case strings.Contains(decl, "TIMESTAMP"):
		return types.MapColumnType(types.TypeTimestamp, 0)
	case decl == "DATE":
		return types.MapColumnType(types.TypeDate, 0)
	case decl == "TIME":
		return types.MapColumnType(types.TypeTime, 0)
	case strings.Contains(decl, "INT"):
		return types.MapColumnType(types.TypeLongLong, 0)
	case strings.Contains(decl, "CHAR"):
		return types.MapColumnType(types.TypeVarString, 0)
	case strings.Contains(decl, "CLOB"), strings.Contains(decl, "TEXT"):
		// MySQL reports TEXT columns as BLOB without the binary flag.
		return types.MapColumnType(types.TypeBlob, 0)
	case strings.Contains(decl, "BLOB"):
		return types.MapColumnType(types.TypeBlob, types.FlagBinary)
	case strings.Contains(decl, "REAL"), strings.Contains(decl, "FLOA"), strings.Contains(decl, "DOUB"):
		return types.MapColumnType(types.TypeDouble, 0)
	case strings.Contains(decl, "DEC"), strings.Contains(decl, "NUMERIC"):
		return types.MapColumnType(types.TypeNewDecimal, 0)
	}
	return types.MapColumnType(types.TypeVarString, 0)
}

// SQLite has a single database per file.
func (sqliteDialect) useStatement(string) string {
	return ""
}
