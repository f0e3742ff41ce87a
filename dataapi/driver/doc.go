// Package driver implements a database/sql/driver that sends every statement
// to a Data API endpoint instead of a database socket.
//
// Importing the package registers the driver under the name "dataapi":
//
//	import _ "github.com/tomyedwab/dataapi/dataapi/driver"
//
// The DSN is the endpoint URL with the ARNs as query parameters:
//
//	db, err := sql.Open("dataapi",
//	    "http://localhost:8080?resourceArn=arn:...&secretArn=arn:...&database=app")
//
// Statements use named placeholders (:name). Arguments passed with sql.Named
// bind by name; positional arguments bind as :p1, :p2 and so on.
//
// Transactions started with db.Begin map onto BeginTransaction and carry the
// transaction id on every statement run through the *sql.Tx. Isolation levels
// and read-only transactions are not supported.
//
// Prepare does not reach the server. The Data API has no prepared statements,
// so a Stmt only keeps the SQL text and sends it again on every call.
package driver
