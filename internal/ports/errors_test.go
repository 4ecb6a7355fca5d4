package ports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/pitwall/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	t.Parallel()

	newContext := func(t *testing.T) (context.Context, *bytes.Buffer) {
		t.Helper()
		buf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(buf, nil))
		return logging.AddToContext(t.Context(), logger), buf
	}

	t.Run("cancelled request is not reported", func(t *testing.T) {
		t.Parallel()

		ctx, buf := newContext(t)
		w := httptest.NewRecorder()

		writeError(ctx, w, fmt.Errorf("waiting for session: %w", context.Canceled))

		require.Equal(t, statusClientClosedRequest, w.Code)
		require.JSONEq(t, `{"success":false,"cause":"request cancelled"}`, w.Body.String())
		require.Contains(t, buf.String(), "level=INFO")
		require.NotContains(t, buf.String(), "Sentry")
		require.NotContains(t, buf.String(), "Unexpected error")
	})

	t.Run("unexpected error is reported", func(t *testing.T) {
		t.Parallel()

		ctx, buf := newContext(t)
		w := httptest.NewRecorder()

		writeError(ctx, w, errors.New("something else"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		// No hub in the context, so the report only reaches the log
		require.Contains(t, buf.String(), "Sentry")
		require.Contains(t, buf.String(), "Unexpected error")
	})

	t.Run("timeout is not a cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, _ := newContext(t)
		w := httptest.NewRecorder()

		writeError(ctx, w, context.DeadlineExceeded)

		require.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}
