package http

import (
	"net/http"
	"strconv"
	"time"

	"apartur/pkg/config"
	apperrors "apartur/pkg/errors"
)

const DateLayout = "2006-01-02"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// ParseDate accepts a calendar date (2006-01-02) or a full RFC3339 timestamp.
func ParseDate(name, value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.InvalidInput("invalid " + name + " format, must be YYYY-MM-DD or RFC3339")
}

// ParseOptionalDate returns nil when the query parameter is absent.
func ParseOptionalDate(r *http.Request, name string) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	t, err := ParseDate(name, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ParseFloat(r *http.Request, name string) (float64, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, apperrors.InvalidInput("missing " + name + " parameter")
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, apperrors.InvalidInput("invalid " + name + " parameter: " + value)
	}
	return f, nil
}
