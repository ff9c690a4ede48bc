// This file implements parsing of query strings, JSON bodies and uploads.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"contas/internal/auth"
	"contas/internal/core"
	"contas/internal/report"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body of at most maxJSONBody bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return core.Validation("body", "request body is empty")
		}
		return core.Validation("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// optionalRef distinguishes an absent parameter (nil) from one given with
// an empty value, which selects records without that reference.
func optionalRef(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	return report.Ref(strings.TrimSpace(q.Get(key)))
}

func parseKindParam(q url.Values) (*core.Kind, error) {
	v := strings.TrimSpace(q.Get("kind"))
	if v == "" {
		return nil, nil
	}
	k, err := core.ParseKind(v)
	if err != nil {
		return nil, core.Validation("kind", err.Error())
	}
	return &k, nil
}

// parseWindow reads from/to as ISO dates. Either may be missing.
func parseWindow(q url.Values) (report.DateRange, error) {
	var r report.DateRange
	for _, p := range []struct {
		key string
		dst *core.Date
	}{{"from", &r.From}, {"to", &r.To}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return report.DateRange{}, core.Validation(p.key, err.Error())
		}
		*p.dst = d
	}
	return r, r.Validate()
}

// parseFilter builds a transaction filter from the list and export
// parameters.
func parseFilter(q url.Values) (report.Filter, error) {
	window, err := parseWindow(q)
	if err != nil {
		return report.Filter{}, err
	}
	kind, err := parseKindParam(q)
	if err != nil {
		return report.Filter{}, err
	}
	return report.Filter{
		Window:         window,
		CompanyID:      optionalRef(q, "company_id"),
		CounterpartyID: optionalRef(q, "counterparty_id"),
		CategoryID:     optionalRef(q, "category_id"),
		Kind:           kind,
	}, nil
}

// parsePositive reads an optional positive integer parameter; def is
// returned when it is absent.
func parsePositive(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, core.Validation(key, key+" must be a positive integer")
	}
	return n, nil
}

func parseBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

// formFile returns the uploaded "file" part. The caller closes it.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, error) {
	// leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			return nil, err
		}
		return nil, core.Validation("file", "expected a multipart form with a file field")
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, core.Validation("file", "file is required")
	}
	return f, nil
}

func ownerID(r *http.Request) string {
	id, _ := auth.OwnerFromContext(r.Context())
	return id
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
