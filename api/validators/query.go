package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a uuid").WithDetails(map[string]any{"field": key})
	}
	return &id, nil
}

func ParsePathUUID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a uuid").WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
