// Package templates holds the templ components rendered by the web server.
// Edit the .templ sources and run `templ generate`; the *_templ.go files are
// generated.
package templates

import (
	"net/url"
	"strconv"
)

// timeLayout formats run timestamps in the history table.
const timeLayout = "2006-01-02 15:04"

func exportURL(runID, format string) string {
	return "/api/runs/" + url.PathEscape(runID) + "/export?format=" + url.QueryEscape(format)
}

// maxSizeMB renders an upload limit in whole megabytes.
func maxSizeMB(n int64) string {
	return strconv.FormatInt(n>>20, 10)
}
