package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryBackoff_StaysWithinJitterBand(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := connectBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo, "attempt %d sample %d", attempt, i)
			assert.LessOrEqual(t, d, hi, "attempt %d sample %d", attempt, i)
		}
	}
}

func TestRetryBackoff_GrowsPerAttempt(t *testing.T) {
	var sums [3]time.Duration
	const samples = 100
	for attempt := range sums {
		for i := 0; i < samples; i++ {
			sums[attempt] += retryBackoff(attempt)
		}
	}
	assert.Less(t, sums[0], sums[1])
	assert.Less(t, sums[1], sums[2])
}

func TestRetryBackoff_NegativeAttemptClamped(t *testing.T) {
	d := retryBackoff(-3)
	hi := time.Duration(float64(connectBaseWait) * (1 + retryJitterFraction))
	assert.LessOrEqual(t, d, hi)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errText("syntax error at or near")))
	assert.False(t, isConnectionError(errText("duplicate key value violates unique constraint")))
	assert.False(t, isConnectionError(errText(`relation "orders" does not exist`)))

	for _, msg := range []string{
		"dial tcp 127.0.0.1:5432: connection refused",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"unexpected EOF",
		"could not connect to server",
	} {
		assert.True(t, isConnectionError(errText(msg)), msg)
	}
}

type errText string

func (e errText) Error() string { return string(e) }
