package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"groupspend/internal/core"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"

	maxBodyBytes = 1 << 20
)

// actingUser reads the authenticated user id set by the upstream gateway.
func actingUser(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return 0, errUnauthenticated
	}
	return id, nil
}

// pathID parses a positive integer path wildcard.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return id, nil
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// parseGroupIDs collects "group" values, accepting repeats and comma lists.
// present is false when the parameter is absent altogether.
func parseGroupIDs(q url.Values) (ids []int64, present bool, err error) {
	raw, present := q["group"]
	if !present {
		return nil, false, nil
	}
	ids = []int64{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, true, fmt.Errorf("%w: invalid group id %q", errBadRequest, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, true, nil
}

// parseDateRange reads start and end (YYYY-MM-DD). A missing bound defaults
// to the matching bound of the current UTC month, the calendar the ledger
// buckets days in.
func parseDateRange(q url.Values, now time.Time) (core.DateRange, error) {
	month := core.MonthRange(core.DateOf(now.UTC()))
	start, end := month.Start, month.End

	if v := strings.TrimSpace(q.Get("start")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.DateRange{}, err
		}
		start = d
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.DateRange{}, err
		}
		end = d
	}
	return core.NewDateRange(start, end)
}

// parsePage reads a 1-based page number; absent means the first page.
func parsePage(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("page"))
	if v == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("%w: invalid page %q", errBadRequest, v)
	}
	return page, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
