package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Drive errors (4000-4999)
	ErrDriveEntryNotFound     = 4000
	ErrDriveInvalidPath       = 4001
	ErrDriveTenantRequired    = 4002
	ErrDrivePathOccupied      = 4003
	ErrDriveStorageFailed     = 4004
	ErrDriveNotAFolder        = 4005
	ErrDriveNotAFile          = 4006
	ErrDrivePathCountMismatch = 4007
	ErrDriveBatchTooLarge     = 4008
	ErrDriveInconsistent      = 4009
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Drive errors
	ErrDriveEntryNotFound:     {ErrDriveEntryNotFound, http.StatusNotFound, "Entry not found"},
	ErrDriveInvalidPath:       {ErrDriveInvalidPath, http.StatusBadRequest, "Invalid path"},
	ErrDriveTenantRequired:    {ErrDriveTenantRequired, http.StatusBadRequest, "Tenant is required"},
	ErrDrivePathOccupied:      {ErrDrivePathOccupied, http.StatusConflict, "Destination path already occupied"},
	ErrDriveStorageFailed:     {ErrDriveStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrDriveNotAFolder:        {ErrDriveNotAFolder, http.StatusBadRequest, "Entry is not a folder"},
	ErrDriveNotAFile:          {ErrDriveNotAFile, http.StatusBadRequest, "Entry is not a file"},
	ErrDrivePathCountMismatch: {ErrDrivePathCountMismatch, http.StatusBadRequest, "Path list does not match file count"},
	ErrDriveBatchTooLarge:     {ErrDriveBatchTooLarge, http.StatusBadRequest, "Too many files in batch"},
	ErrDriveInconsistent:      {ErrDriveInconsistent, http.StatusInternalServerError, "Storage and metadata are out of sync"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
