package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestTestSpanIsExported(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	tp, err := NewTracerProvider(context.Background(), "uirun-ui-tests", "ci", &buf)
	require.NoError(t, err)

	ctx, span := StartTestSpan(context.Background(), "LoginTest.testValidLogin_1", "LoginTest", "testValidLogin", "worker-1")
	AddEvent(ctx, "session.created", AttrSessionID.String("abc"))
	EndTestSpan(span, "FAILED", errors.New("expected dashboard"))

	require.NoError(t, tp.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "LoginTest.testValidLogin")
	assert.Contains(t, out, "uirun.worker.id")
	assert.Contains(t, out, "session.created")
	assert.Contains(t, out, "expected dashboard")
}

func TestNoopTracerWithoutProvider(t *testing.T) {
	_, span := StartTestSpan(context.Background(), "id", "C", "m", "worker-1")
	assert.NotPanics(t, func() { EndTestSpan(span, "PASSED", nil) })
}
