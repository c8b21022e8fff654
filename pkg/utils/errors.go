package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrNetwork           = errors.New("network error")                 // DNS, connect, TLS, timeout
	ErrHTTPStatus        = errors.New("non-2xx HTTP status")            // Wraps status code detail
	ErrTooLarge          = errors.New("response body exceeds size cap") // Body larger than configured cap
	ErrParsing           = errors.New("parsing error")                  // Wraps specific parsing error (HTML, URL, YAML)
	ErrFilesystem        = errors.New("filesystem error")               // Wraps os errors
	ErrCorruptLedger     = errors.New("crawl ledger is corrupt")        // Ledger exists but cannot be parsed
	ErrStorageUnwritable = errors.New("storage location not writable")  // Fatal at startup
	ErrDatabase          = errors.New("database error")                 // Wraps badger errors
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrConfigValidation  = errors.New("configuration validation error")
)

// CategorizeError maps an error to a predefined category string for the error log.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrHTTPStatus):
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "status 404"):
			return "HTTP_404"
		case strings.Contains(errMsg, "status 403"):
			return "HTTP_403"
		case strings.Contains(errMsg, "status 429"):
			return "HTTP_429"
		case strings.Contains(errMsg, "status 5"):
			return "HTTP_5xx"
		}
		return "HTTP_Other"
	case errors.Is(err, ErrTooLarge):
		return "Content_TooLarge"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrCorruptLedger):
		return "Ledger_Corrupt"
	case errors.Is(err, ErrStorageUnwritable):
		return "Storage_Unwritable"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}

	if errors.Is(err, ErrNetwork) {
		return "Network_Other"
	}
	return "Unknown"
}
