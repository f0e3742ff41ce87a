package types

// --- JSON structures exchanged with Data API clients ---

// Credentials identifies the cluster and secret a request is addressed to.
// Every request body embeds it.
type Credentials struct {
	ResourceArn string `json:"resourceArn"`
	SecretArn   string `json:"secretArn"`
}

func (c Credentials) ARNs() (resource, secret string) {
	return c.ResourceArn, c.SecretArn
}

// SqlParameter is a named parameter supplied by the caller.
type SqlParameter struct {
	Name     string `json:"name"`
	Value    Value  `json:"value"`
	TypeHint string `json:"typeHint,omitempty"` // Accepted for SDK compatibility, not interpreted
}

type BeginTransactionRequest struct {
	Credentials
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
}

type BeginTransactionResponse struct {
	TransactionID string `json:"transactionId"`
}

// EndTransactionRequest is the body of both CommitTransaction and
// RollbackTransaction.
type EndTransactionRequest struct {
	Credentials
	TransactionID string `json:"transactionId"`
}

type EndTransactionResponse struct {
	TransactionStatus string `json:"transactionStatus"`
}

const (
	StatusCommitted  = "Transaction Committed"
	StatusRolledBack = "Rollback Complete"
)

type ExecuteStatementRequest struct {
	Credentials
	SQL                   string         `json:"sql"`
	Database              string         `json:"database,omitempty"`
	Schema                string         `json:"schema,omitempty"`
	ContinueAfterTimeout  *bool          `json:"continueAfterTimeout,omitempty"`
	IncludeResultMetadata bool           `json:"includeResultMetadata,omitempty"`
	Parameters            []SqlParameter `json:"parameters,omitempty"`
	TransactionID         string         `json:"transactionId,omitempty"`
}

// ColumnMetadata describes one result column. Attributes the backend does
// not report are omitted.
type ColumnMetadata struct {
	Name       string `json:"name,omitempty"`
	Label      string `json:"label,omitempty"`
	SchemaName string `json:"schemaName,omitempty"`
	TableName  string `json:"tableName,omitempty"`
	TypeName   string `json:"typeName,omitempty"`
	Nullable   *int64 `json:"nullable,omitempty"`
	Precision  *int64 `json:"precision,omitempty"`
	Scale      *int64 `json:"scale,omitempty"`
	IsSigned   *bool  `json:"isSigned,omitempty"`
}

type ExecuteStatementResponse struct {
	NumberOfRecordsUpdated int64            `json:"numberOfRecordsUpdated"`
	GeneratedFields        []Value          `json:"generatedFields,omitempty"`
	Records                [][]Value        `json:"records"`
	ColumnMetadata         []ColumnMetadata `json:"columnMetadata"`
}

type BatchExecuteStatementRequest struct {
	Credentials
	SQL           string           `json:"sql"`
	Database      string           `json:"database,omitempty"`
	Schema        string           `json:"schema,omitempty"`
	ParameterSets [][]SqlParameter `json:"parameterSets,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
}

type UpdateResult struct {
	GeneratedFields []Value `json:"generatedFields"`
}

type BatchExecuteStatementResponse struct {
	UpdateResults []UpdateResult `json:"updateResults"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
