package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCallableError(t *testing.T) {
	t.Run("codes map to wire status", func(t *testing.T) {
		tt := []struct {
			code   ErrorCode
			status string
			http   int
		}{
			{CodeInvalidArgument, "INVALID_ARGUMENT", http.StatusBadRequest},
			{CodeUnauthenticated, "UNAUTHENTICATED", http.StatusUnauthorized},
			{CodeNotFound, "NOT_FOUND", http.StatusNotFound},
			{CodeAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
			{CodeUnknown, "UNKNOWN", http.StatusInternalServerError},
			{CodeInternal, "INTERNAL", http.StatusInternalServerError},
		}

		for _, tc := range tt {
			t.Run(string(tc.code), func(t *testing.T) {
				if got := tc.code.Status(); got != tc.status {
					t.Errorf("Status() = %s, want %s", got, tc.status)
				}
				if got := tc.code.HTTPStatus(); got != tc.http {
					t.Errorf("HTTPStatus() = %d, want %d", got, tc.http)
				}
			})
		}
	})

	t.Run("invalid argument matches sentinel", func(t *testing.T) {
		err := NewCallableError(CodeInvalidArgument, "Missing '%s' parameter.", "url")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Error("expected errors.Is(err, ErrInvalidArgument)")
		}
		if err.Message != "Missing 'url' parameter." {
			t.Errorf("unexpected message %q", err.Message)
		}
	})

	t.Run("upstream error keeps status and cause", func(t *testing.T) {
		cause := errors.New("invalid_grant")
		err := UpstreamError(400, cause)

		if err.UpstreamStatus != 400 {
			t.Errorf("expected upstream status 400, got %d", err.UpstreamStatus)
		}
		if err.Message != "Spotify error code: 400" {
			t.Errorf("unexpected message %q", err.Message)
		}
		if !errors.Is(err, ErrUpstream) || !errors.Is(err, cause) {
			t.Error("expected upstream sentinel and cause in chain")
		}
	})

	t.Run("AsCallableError", func(t *testing.T) {
		if AsCallableError(nil) != nil {
			t.Error("expected nil for nil error")
		}

		wrapped := fmt.Errorf("lookup: %w", NewCallableError(CodeNotFound, "Could not find party"))
		if got := AsCallableError(wrapped); got.Code != CodeNotFound {
			t.Errorf("expected not-found, got %s", got.Code)
		}

		if got := AsCallableError(fmt.Errorf("%w: code 123", ErrPartyNotFound)); got.Code != CodeNotFound {
			t.Errorf("expected not-found for party sentinel, got %s", got.Code)
		}

		if got := AsCallableError(fmt.Errorf("%w: track t1", ErrConflict)); got.Code != CodeAlreadyExists || !errors.Is(got, ErrConflict) {
			t.Errorf("expected already-exists for conflict, got %s", got.Code)
		}

		if got := AsCallableError(errors.New("disk on fire")); got.Code != CodeInternal || got.Message != "internal error" {
			t.Errorf("expected opaque internal error, got %+v", got)
		}
	})
}

func TestCallableErrorBody(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		body := UpstreamError(401, errors.New("expired")).Body()
		if body.Status != "UNKNOWN" || body.Details == nil || body.Details.UpstreamStatus != 401 {
			t.Fatalf("unexpected body %+v", body)
		}

		back := body.Err()
		if back.Code != CodeUnknown || back.UpstreamStatus != 401 || back.Message != "Spotify error code: 401" {
			t.Errorf("unexpected decoded error %+v", back)
		}
	})

	t.Run("no details without upstream status", func(t *testing.T) {
		body := NewCallableError(CodeNotFound, "Could not find party").Body()
		if body.Details != nil {
			t.Errorf("expected no details, got %+v", body.Details)
		}
	})

	t.Run("ErrorCodeFromStatus", func(t *testing.T) {
		tests := map[string]ErrorCode{
			"INVALID_ARGUMENT":   CodeInvalidArgument,
			"NOT_FOUND":          CodeNotFound,
			"ALREADY_EXISTS":     CodeAlreadyExists,
			"UNAUTHENTICATED":    CodeUnauthenticated,
			"INTERNAL":           CodeInternal,
			"RESOURCE_EXHAUSTED": CodeUnknown,
		}
		for status, want := range tests {
			if got := ErrorCodeFromStatus(status); got != want {
				t.Errorf("ErrorCodeFromStatus(%s) = %s, want %s", status, got, want)
			}
		}
	})
}
