package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineResolvesDeviceID(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"dev01","value":1}`))
	require.NoError(t, err)
	assert.Equal(t, "dev01", env.DeviceID)
}

func TestParseLineDeviceIDFallbacks(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"dev_id fallback", `{"dev_id":"dev02"}`, "dev02"},
		{"device_id wins over dev_id", `{"device_id":"a","dev_id":"b"}`, "a"},
		{"empty device_id falls through", `{"device_id":"","dev_id":"b"}`, "b"},
		{"non-string device_id treated as absent", `{"device_id":42,"dev_id":"b"}`, "b"},
		{"neither present", `{"value":1}`, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := ParseLine([]byte(tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.want, env.DeviceID)
		})
	}
}

func TestParseLineEpochTimestamp(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","timestamp":1735732800}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), env.Timestamp)
	assert.Equal(t, time.UTC, env.Timestamp.Location())
}

func TestParseLineFractionalEpochTimestamp(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","ts":1735732800.5}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 500000000, time.UTC), env.Timestamp)
}

func TestParseLineZuluEqualsExplicitOffset(t *testing.T) {
	zulu, err := ParseLine([]byte(`{"device_id":"d","timestamp":"2025-01-01T12:00:00Z"}`))
	require.NoError(t, err)
	offset, err := ParseLine([]byte(`{"device_id":"d","timestamp":"2025-01-01T12:00:00+00:00"}`))
	require.NoError(t, err)

	assert.True(t, zulu.Timestamp.Equal(offset.Timestamp))
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), zulu.Timestamp)
}

func TestParseLineOffsetConvertedToUTC(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","timestamp":"2025-01-01T14:30:00+02:30"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), env.Timestamp)
}

func TestParseLineNaiveTimestampAssumedUTC(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","timestamp":"2025-01-01T12:00:00"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), env.Timestamp)
}

func TestParseLineTimestampFieldWinsOverTs(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","timestamp":100,"ts":200}`))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(100, 0).UTC(), env.Timestamp)
}

func TestParseLineMissingTimestampDefaultsToNow(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","value":1}`))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 2*time.Second)
}

func TestParseLineOutOfRangeEpochDefaultsToNow(t *testing.T) {
	for _, line := range []string{
		`{"device_id":"d","timestamp":1e30}`,
		`{"device_id":"d","timestamp":-1e30}`,
		`{"device_id":"d","ts":999999999999999}`,
	} {
		env, err := ParseLine([]byte(line))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 2*time.Second, "input: %s", line)
	}
}

func TestParseLineUnparseableTimestampDefaultsToNow(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"d","timestamp":"not a time"}`))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 2*time.Second)
}

func TestParseLineInvalidJSON(t *testing.T) {
	cases := []string{
		`{invalid json}`,
		`not json at all`,
		`[1,2,3]`,
		`"just a string"`,
		`{"a":1} trailing`,
	}
	for _, line := range cases {
		_, err := ParseLine([]byte(line))
		assert.ErrorIs(t, err, ErrInvalidJSON, "input: %s", line)
	}
}

func TestParseLineEmpty(t *testing.T) {
	for _, line := range []string{"", "   ", "\n", " \t \n"} {
		_, err := ParseLine([]byte(line))
		assert.ErrorIs(t, err, ErrEmptyLine)
	}
}

func TestParseLineIdempotent(t *testing.T) {
	line := []byte(`{"device_id":"dev01","value":12.3,"timestamp":"2025-01-01T12:00:00Z"}`)

	first, err := ParseLine(line)
	require.NoError(t, err)
	second, err := ParseLine(line)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID)
	assert.True(t, first.Timestamp.Equal(second.Timestamp))
	assert.Equal(t, first.Raw, second.Raw)
}

func TestParseLinePayloadRoundTrip(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"dev01","value":12.3,"timestamp":"2025-01-01T12:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "dev01", env.DeviceID)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), env.Timestamp)

	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Raw, &obj))
	assert.Equal(t, 12.3, obj["value"])
}

func TestParseLineNonASCIIPreserved(t *testing.T) {
	env, err := ParseLine([]byte(`{"device_id":"车间一号","note":"甲醇装置"}`))
	require.NoError(t, err)

	assert.Equal(t, "车间一号", env.DeviceID)
	assert.Contains(t, string(env.Raw), "甲醇装置")
	assert.NotContains(t, string(env.Raw), `\u`)
}

func TestParseLineLossyDecode(t *testing.T) {
	line := append([]byte{0xff, 0xfe}, []byte(`{"device_id":"dev01"}`)...)
	env, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, "dev01", env.DeviceID)
}

func TestParseLineSurroundingWhitespaceStripped(t *testing.T) {
	env, err := ParseLine([]byte("  {\"device_id\":\"dev01\"}\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "dev01", env.DeviceID)
}
