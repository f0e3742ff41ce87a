package apierror

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/tomyedwab/dataapi/dataapi/marshal"
)

// Failure is one category of backend failure. The set of implementations
// is closed: every category maps to exactly one client-facing error.
type Failure interface {
	APIError() *Error
	failure()
}

// ServerError is an error reported by the database server for a
// statement, such as a syntax error or a constraint violation.
type ServerError struct{ Message string }

type (
	IOError           struct{}
	CodecError        struct{}
	DriverError       struct{}
	URLError          struct{}
	TLSError          struct{}
	TLSHandshakeError struct{}
	FromValueError    struct{}
	FromRowError      struct{}
)

func (f ServerError) APIError() *Error     { return New(f.Message, http.StatusBadRequest) }
func (IOError) APIError() *Error           { return internal("Mysql IoErr") }
func (CodecError) APIError() *Error        { return internal("Mysql CodecError") }
func (DriverError) APIError() *Error       { return internal("Mysql DriverError") }
func (URLError) APIError() *Error          { return internal("Mysql UrlError") }
func (TLSError) APIError() *Error          { return internal("Mysql TlsError") }
func (TLSHandshakeError) APIError() *Error { return internal("Mysql TlsHandshakeError") }
func (FromValueError) APIError() *Error    { return internal("Mysql FromValueError") }
func (FromRowError) APIError() *Error      { return internal("Mysql FromRowError") }

func (ServerError) failure()       {}
func (IOError) failure()           {}
func (CodecError) failure()        {}
func (DriverError) failure()       {}
func (URLError) failure()          {}
func (TLSError) failure()          {}
func (TLSHandshakeError) failure() {}
func (FromValueError) failure()    {}
func (FromRowError) failure()      {}

func internal(message string) *Error {
	return New(message, http.StatusInternalServerError)
}

// Classify sorts an error returned by the driver, the network stack or the
// result marshaler into its failure category. Errors nothing recognises
// are attributed to the driver.
func Classify(err error) Failure {
	var (
		mysqlErr  *mysql.MySQLError
		sqliteErr sqlite3.Error
		convErr   *marshal.ConversionError
		scanErr   *marshal.ScanError
		urlErr    *url.Error
		netErr    net.Error
	)

	switch {
	case errors.As(err, &mysqlErr):
		return ServerError{Message: mysqlErr.Message}
	case errors.As(err, &sqliteErr):
		return classifySQLite(sqliteErr)
	case errors.As(err, &convErr):
		return FromValueError{}
	case errors.As(err, &scanErr):
		return FromRowError{}
	case isTLSHandshake(err):
		return TLSHandshakeError{}
	case errors.Is(err, mysql.ErrNoTLS):
		return TLSError{}
	case errors.As(err, &urlErr):
		return URLError{}
	case errors.Is(err, mysql.ErrMalformPkt),
		errors.Is(err, mysql.ErrPktSync),
		errors.Is(err, mysql.ErrPktSyncMul),
		errors.Is(err, mysql.ErrPktTooLarge):
		return CodecError{}
	case errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return IOError{}
	}
	return DriverError{}
}

func classifySQLite(err sqlite3.Error) Failure {
	switch err.Code {
	case sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrFull:
		return IOError{}
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrFormat:
		return CodecError{}
	}
	return ServerError{Message: err.Error()}
}

func isTLSHandshake(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		verifyErr   *tls.CertificateVerificationError
		authorityEr x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authorityEr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}
