package httpapp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

func hasQuery(r *http.Request, names ...string) bool {
	q := r.URL.Query()
	for _, name := range names {
		if q.Has(name) {
			return true
		}
	}
	return false
}

// queryInt returns fallback when the parameter is absent.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("query parameter %s must be an integer", name)
	}
	return n, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Validationf("query parameter %s must be an integer", name)
	}
	return n, nil
}

// queryList splits repeated and comma separated values of a parameter.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
