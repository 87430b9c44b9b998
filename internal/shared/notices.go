// Package shared holds small helpers used across the view controllers.
package shared

import (
	"net/http"
	"net/url"
)

// Redirect-with-message helpers. Mutations redirect back to their view
// carrying a one-shot message in the query string; the view renders it
// as a banner.

// WithNotice appends a success notice to path.
func WithNotice(path, msg string) string {
	return withParam(path, "notice", msg)
}

// WithAlert appends a failure message to path.
func WithAlert(path, msg string) string {
	return withParam(path, "alert", msg)
}

func withParam(path, key, msg string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set(key, msg)
	u.RawQuery = q.Encode()
	return u.String()
}

// Notice extracts the success banner text from a request.
func Notice(r *http.Request) string {
	return r.URL.Query().Get("notice")
}

// Alert extracts the failure banner text from a request.
func Alert(r *http.Request) string {
	return r.URL.Query().Get("alert")
}
