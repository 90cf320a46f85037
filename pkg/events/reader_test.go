package events

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"eventId":"1","timestampUtc":"2024-03-01T11:00:00Z","testId":"LoginTest.testValidLogin_1","testName":"testValidLogin","suiteName":"Login","className":"LoginTest","status":"STARTED","message":"Test execution started","environment":"ci","service":"uirun-ui-tests","attributes":{}}

{"eventId":"2","timestampUtc":"2024-03-01T11:00:02Z","testId":"LoginTest.testValidLogin_1","testName":"testValidLogin","suiteName":"Login","className":"LoginTest","status":"FAILED","durationMs":2000,"message":"expected dashboard","stacktrace":"*runner.AssertionError: expected dashboard\ngoroutine 7 [running]:\n\tmain.go:10","environment":"ci","service":"uirun-ui-tests","attributes":{}}
not json at all
{"eventId":"3","timestampUtc":"2024-03-01T11:00:03Z","testId":"LoginTest.testLogout_2","testName":"testLogout","className":"LoginTest","status":"STARTED","message":"Test execution started"}
{"eventId":"4","timestampUtc":"2024-03-01T11:`

func TestDecodeSkipsMalformedLines(t *testing.T) {
	records, skipped, err := Decode(strings.NewReader(sampleLog))
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, skipped, "the garbage line and the cut-off tail")

	assert.Equal(t, StatusFailed, records[1].Status)
	require.NotNil(t, records[1].DurationMs)
	assert.Equal(t, int64(2000), *records[1].DurationMs)
	assert.NotNil(t, records[2].Attributes, "missing attributes decode as empty")
}

func TestFailuresAndSignature(t *testing.T) {
	records, _, err := Decode(strings.NewReader(sampleLog))
	require.NoError(t, err)

	failures := Failures(records)
	require.Len(t, failures, 1)
	assert.Equal(t,
		"Test: testValidLogin | Class: LoginTest | Error: expected dashboard | Exception: *runner.AssertionError: expected dashboard",
		FailureSignature(failures[0]))

	bare := failures[0]
	bare.Stacktrace = "goroutine 7 [running]:\n\tmain.go:10"
	assert.Equal(t, "Test: testValidLogin | Class: LoginTest | Error: expected dashboard", FailureSignature(bare),
		"goroutine headers vary by worker and are not part of the signature")

	assert.Empty(t, FailureSignature(records[0]))

	noStack := failures[0]
	noStack.Stacktrace = ""
	assert.Equal(t, "Test: testValidLogin | Class: LoginTest | Error: expected dashboard", FailureSignature(noStack))
}

func TestUnterminated(t *testing.T) {
	records, _, err := Decode(strings.NewReader(sampleLog))
	require.NoError(t, err)
	assert.Equal(t, []string{"LoginTest.testLogout_2"}, Unterminated(records))
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestFollowStreamsAppendedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"testId":"old","status":"STARTED"}`+"\n"), 0644))

	got := make(chan Record, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, true, func(r Record) { got <- r })
	}()

	expect := func(testID string) {
		t.Helper()
		select {
		case r := <-got:
			assert.Equal(t, testID, r.TestID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", testID)
		}
	}
	expect("old")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()

	// A record written in two pieces is delivered once, whole.
	_, err = f.WriteString(`{"testId":"split","sta`)
	require.NoError(t, err)
	time.Sleep(2 * followPollInterval)
	select {
	case r := <-got:
		t.Fatalf("partial line delivered early: %+v", r)
	default:
	}
	_, err = f.WriteString(`tus":"PASSED"}` + "\n")
	require.NoError(t, err)
	expect("split")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not stop after cancel")
	}
}

func TestFollowFromEndSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"testId":"old"}`+"\n"), 0644))

	got := make(chan Record, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = Follow(ctx, path, false, func(r Record) { got <- r })
	}()

	// Give the follower time to record the starting offset.
	time.Sleep(2 * followPollInterval)
	sink := NewFileSink(path)
	defer sink.Close()
	require.NoError(t, sink.Append([]byte(`{"testId":"new"}`+"\n")))

	select {
	case r := <-got:
		assert.Equal(t, "new", r.TestID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for new record")
	}
}

func TestFollowMissingDirectory(t *testing.T) {
	err := Follow(context.Background(), filepath.Join(t.TempDir(), "nope", "events.jsonl"), true, func(Record) {})
	assert.Error(t, err)
}
