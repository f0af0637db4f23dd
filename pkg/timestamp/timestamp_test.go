package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	before := time.Now().UnixMilli()
	now := Now()
	after := time.Now().UnixMilli()
	assert.GreaterOrEqual(t, now, before)
	assert.LessOrEqual(t, now, after)
}

func TestRoundTrip(t *testing.T) {
	orig := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)
	ms := ToUnixMs(orig)
	assert.Equal(t, int64(1709296245123), ms)
	assert.True(t, FromUnixMs(ms).Equal(orig))
}

func TestZeroMeansUnset(t *testing.T) {
	assert.Zero(t, ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
	assert.Empty(t, Format(0))
	assert.Zero(t, Since(0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2024-03-01T12:30:45Z", Format(1709296245123))
}

func TestSince(t *testing.T) {
	ms := Now() - 1500
	assert.GreaterOrEqual(t, Since(ms), 1500*time.Millisecond)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(0))
	assert.NoError(t, Validate(Now()))
	assert.Error(t, Validate(-1))
	assert.Error(t, Validate(time.Now().UnixNano()), "nanoseconds are out of range")
}
