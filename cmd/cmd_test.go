package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"commitbet/commitment"
	"commitbet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintCommitment_WithSalt(t *testing.T) {
	salt := models.Salt{1, 2, 3}
	var out bytes.Buffer

	require.NoError(t, PrintCommitment(&out, []string{"250", "yes", salt.String()}))

	want := commitment.Compute(250, models.OutcomeYes, salt)
	assert.Contains(t, out.String(), "commitment: "+want.String())
	assert.Contains(t, out.String(), "salt:       "+salt.String())
	assert.Contains(t, out.String(), "outcome:    YES (1)")
}

func TestPrintCommitment_RandomSalt(t *testing.T) {
	var first, second bytes.Buffer

	require.NoError(t, PrintCommitment(&first, []string{"10", "no"}))
	require.NoError(t, PrintCommitment(&second, []string{"10", "no"}))

	assert.NotEqual(t, first.String(), second.String())
}

func TestPrintCommitment_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"too many args", []string{"1", "yes", "00", "extra"}},
		{"bad amount", []string{"-5", "yes"}},
		{"zero amount", []string{"0", "yes"}},
		{"bad outcome", []string{"5", "maybe"}},
		{"short salt", []string{"5", "no", "abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, PrintCommitment(&out, tt.args))
			assert.Empty(t, out.String())
		})
	}
}

func TestRenderMarkets(t *testing.T) {
	yes := models.OutcomeYes
	deadline := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	markets := []*models.Market{
		{
			Key:            models.DeriveMarketKey("alice", 1),
			Creator:        "alice",
			Question:       strings.Repeat("q", 60),
			Deadline:       deadline,
			RevealDeadline: deadline.Add(models.DefaultRevealPeriod),
			Status:         models.MarketStatusResolved,
			Outcome:        &yes,
			TotalPool:      300,
			YesPool:        200,
			NoPool:         100,
			YesCount:       2,
			NoCount:        1,
		},
	}

	var out bytes.Buffer
	require.NoError(t, RenderMarkets(&out, markets))

	rendered := out.String()
	assert.Contains(t, rendered, "resolved")
	assert.Contains(t, rendered, "200 (2)")
	assert.Contains(t, rendered, "2026-07-01T00:00:00Z")
	assert.Contains(t, rendered, shortKey(markets[0].Key))
	assert.NotContains(t, rendered, strings.Repeat("q", 60))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
