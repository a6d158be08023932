package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tvmmachans/Customo/internal/validation"
)

// decodeJSON reads the request body into v. It writes the error response
// itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}

// queryParser reads typed query parameters and collects every malformed
// one into a single validation error.
type queryParser struct {
	values url.Values
	errs   validation.Errors
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{values: r.URL.Query()}
}

func (q *queryParser) str(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryParser) getInt(key string) int {
	v := q.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.errs.Add(key, "must be a whole number")
		return 0
	}
	return n
}

func (q *queryParser) getFloat(key string) *float64 {
	v := q.str(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.errs.Add(key, "must be a number")
		return nil
	}
	return &f
}

func (q *queryParser) getBool(key string) *bool {
	v := q.str(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.errs.Add(key, "must be true or false")
		return nil
	}
	return &b
}

// check records err when it is non-nil.
func (q *queryParser) check(err error) {
	q.errs.AddErr(err)
}

func (q *queryParser) err() error {
	return q.errs.Err()
}
