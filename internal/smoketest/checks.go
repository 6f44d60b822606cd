package smoketest

import (
	"fmt"
	"mime"
	"net/http"
)

type healthBody struct {
	Healthy   bool  `json:"healthy"`
	Timestamp int64 `json:"timestamp"`
}

type statusBody struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Group   string `json:"group"`
}

type rootFailureBody struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Error   string `json:"error"`
}

// DefaultChecks returns the routing contract checks.
func DefaultChecks() []Check {
	checks := []Check{
		{Name: "health", Method: http.MethodGet, Path: "/health", Verify: verifyHealth},
		{Name: "unknown_api", Method: http.MethodGet, Path: pathUnknownAPI, Verify: verifyJSONFailure(http.StatusNotFound, "Route not found")},
		{Name: "missing_upload", Method: http.MethodGet, Path: pathMissingUpload, Verify: verifyJSONFailure(http.StatusNotFound, "Route not found")},
		{Name: "spa_fallback", Method: http.MethodGet, Path: pathClientRoute, Verify: verifyEntryOr(http.StatusNotFound, verifyJSONFailure(http.StatusNotFound, "Page not found"))},
		{Name: "root", Method: http.MethodGet, Path: "/", Verify: verifyEntryOr(http.StatusInternalServerError, verifyRootFailure)},
	}
	for _, group := range []string{"auth", "complaints", "users"} {
		checks = append(checks, Check{
			Name:   group + "_status",
			Method: http.MethodGet,
			Path:   "/api/" + group + "/status",
			Verify: verifyGroupStatus(group),
		})
	}
	return checks
}

func expectStatus(resp *http.Response, want int) error {
	if resp.StatusCode != want {
		return fmt.Errorf("%w: got %d, want %d", ErrStatus, resp.StatusCode, want)
	}
	return nil
}

func verifyHealth(resp *http.Response, body []byte) error {
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	var h healthBody
	if err := unmarshalJSON(body, &h); err != nil {
		return err
	}
	if !h.Healthy || h.Timestamp <= 0 {
		return fmt.Errorf("%w: %s", ErrUnexpectedBody, body)
	}
	return nil
}

func verifyJSONFailure(status int, message string) func(*http.Response, []byte) error {
	return func(resp *http.Response, body []byte) error {
		if err := expectStatus(resp, status); err != nil {
			return err
		}
		var s statusBody
		if err := unmarshalJSON(body, &s); err != nil {
			return err
		}
		if s.Success == nil || *s.Success || s.Message != message {
			return fmt.Errorf("%w: %s", ErrUnexpectedBody, body)
		}
		return nil
	}
}

// verifyEntryOr accepts the HTML entry document, or the degraded answer a
// server without a built frontend gives.
func verifyEntryOr(degraded int, verify func(*http.Response, []byte) error) func(*http.Response, []byte) error {
	return func(resp *http.Response, body []byte) error {
		if resp.StatusCode == degraded {
			return verify(resp, body)
		}
		if err := expectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil || mediaType != "text/html" {
			return fmt.Errorf("%w: content type %q", ErrUnexpectedBody, resp.Header.Get("Content-Type"))
		}
		return nil
	}
}

func verifyRootFailure(resp *http.Response, body []byte) error {
	var f rootFailureBody
	if err := unmarshalJSON(body, &f); err != nil {
		return err
	}
	if f.Message == "" || f.Error == "" {
		return fmt.Errorf("%w: %s", ErrUnexpectedBody, body)
	}
	return nil
}

func verifyGroupStatus(group string) func(*http.Response, []byte) error {
	return func(resp *http.Response, body []byte) error {
		if err := expectStatus(resp, http.StatusOK); err != nil {
			return err
		}
		var s statusBody
		if err := unmarshalJSON(body, &s); err != nil {
			return err
		}
		if s.Success == nil || !*s.Success || s.Group != group {
			return fmt.Errorf("%w: %s", ErrUnexpectedBody, body)
		}
		return nil
	}
}
