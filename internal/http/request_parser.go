package http

// This file holds the helpers shared by handlers for reading the caller's
// identity, path values and request bodies.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	// UserIDHeader carries the caller's identity; authentication happens
	// upstream.
	UserIDHeader = "X-User-ID"

	maxUserIDLength = 128
	maxJSONBytes    = 1 << 20
)

var errNoUser = errors.New("missing " + UserIDHeader + " header")

// userID returns the sanitized caller id.
func userID(r *http.Request) (string, error) {
	id := sanitizeInput(r.Header.Get(UserIDHeader))
	if id == "" {
		return "", errNoUser
	}
	if len(id) > maxUserIDLength || strings.ContainsAny(id, ":/ ") {
		return "", errNoUser
	}
	return id, nil
}

// decodeJSON reads a single JSON value from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("empty request body")
		default:
			return badRequest(fmt.Sprintf("invalid JSON: %v", err))
		}
	}
	if dec.More() {
		return badRequest("invalid JSON: trailing data")
	}
	return nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// queryInt returns the named query parameter, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, v))
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
