// Package core provides the business logic for BOM extraction runs.
//
// # Error Codes Reference
//
// Technical errors are mapped to user-facing messages with a code that users
// can quote to support.
//
// # Header and Data Errors (HDR001-HDR099)
//
//	HDR001 - Header not found: no row in the first 20 looked like a BOM header
//	         Action: Make sure the table has designator and part number columns
//	         Patterns: "header not found"
//
//	HDR002 - No valid rows: the file contained no usable BOM lines
//	         Action: Check that designator and part cells are filled in
//	         Patterns: "no valid bom rows"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Workbook unreadable
//	          Patterns: "open workbook"
//	FILE003 - PDF text unreadable
//	          Patterns: "extract text"
//	FILE004 - No file
//	          Patterns: "no file provided"
//	FILE005 - Empty file
//	          Patterns: "empty file"
//	FILE006 - Unsupported format
//	          Patterns: "unsupported file format"
//	FILE007 - No sheets selected
//	          Patterns: "no sheets selected"
//	FILE008 - Nothing extracted
//	          Patterns: "no data extracted"
//	FILE009 - Sheet missing
//	          Patterns: "sheet not found"
//	FILE010 - Bad sheet selection
//	          Patterns: "invalid sheet selection"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy
//	         Patterns: "too many concurrent uploads"
//	UPL004 - Request cancelled
//	         Patterns: "context canceled"
//	UPL005 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Run History Errors (RUN001-RUN099)
//
//	RUN001 - Run not found
//	         Patterns: "run not found", "invalid run id"
//	RUN002 - History disabled
//	         Patterns: "run history disabled"
//	RUN003 - Unknown export format
//	         Patterns: "unsupported export format"
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	        Patterns: "connection refused"
//	DB006 - Timeout
//	        Patterns: "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Returned when nothing matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns precede general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Header and data
	{
		pattern: "header not found",
		msg: UserMessage{
			Message: "Could not find the BOM header row",
			Action:  "Make sure the table has designator and part number columns near the top",
			Code:    "HDR001",
		},
	},
	{
		pattern: "no valid bom rows",
		msg: UserMessage{
			Message: "No valid BOM lines were found",
			Action:  "Check that designator and part number cells are filled in",
			Code:    "HDR002",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the BOM into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the BOM into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Save the file as .xlsx and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "extract text",
		msg: UserMessage{
			Message: "Text could not be read from the PDF",
			Action:  "Export the BOM as CSV or XLSX instead",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a BOM file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with BOM data",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file format is not supported",
			Action:  "Upload an XLSX, CSV, TXT or PDF file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no sheets selected",
		msg: UserMessage{
			Message: "No worksheets were selected",
			Action:  "Select at least one sheet to process",
			Code:    "FILE007",
		},
	},
	{
		pattern: "no data extracted",
		msg: UserMessage{
			Message: "No data could be extracted from the file",
			Action:  "Check that the file contains a BOM table",
			Code:    "FILE008",
		},
	},
	{
		pattern: "sheet not found",
		msg: UserMessage{
			Message: "The selected sheet does not exist in the workbook",
			Action:  "Reload the sheet list and select again",
			Code:    "FILE009",
		},
	},
	{
		pattern: "invalid sheet selection",
		msg: UserMessage{
			Message: "The sheet selection could not be read",
			Action:  "Reload the page and select the sheets again",
			Code:    "FILE010",
		},
	},

	// Upload
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Processing took too long",
			Action:  "Try a smaller file or fewer sheets",
			Code:    "UPL005",
		},
	},

	// Run history
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "That run does not exist",
			Action:  "Pick a run from the history list",
			Code:    "RUN001",
		},
	},
	{
		pattern: "invalid run id",
		msg: UserMessage{
			Message: "That run does not exist",
			Action:  "Pick a run from the history list",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run history disabled",
		msg: UserMessage{
			Message: "Run history is not enabled on this server",
			Action:  "Configure a database to keep run history",
			Code:    "RUN002",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Unknown export format",
			Action:  "Use xlsx or csv",
			Code:    "RUN003",
		},
	},

	// Database
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
