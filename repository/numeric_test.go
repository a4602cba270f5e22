package repository

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericConversion(t *testing.T) {
	t.Run("round trip preserves full u64 range", func(t *testing.T) {
		for _, v := range []uint64{0, 1, 100_000_000, math.MaxUint64} {
			got, err := uint64FromNumeric(numericFromUint64(v))
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("positive exponent", func(t *testing.T) {
		got, err := uint64FromNumeric(pgtype.Numeric{Int: big.NewInt(15), Exp: 3, Valid: true})
		require.NoError(t, err)
		assert.Equal(t, uint64(15000), got)
	})

	t.Run("negative exponent without fraction", func(t *testing.T) {
		got, err := uint64FromNumeric(pgtype.Numeric{Int: big.NewInt(1500), Exp: -2, Valid: true})
		require.NoError(t, err)
		assert.Equal(t, uint64(15), got)
	})

	t.Run("fractional value rejected", func(t *testing.T) {
		_, err := uint64FromNumeric(pgtype.Numeric{Int: big.NewInt(1501), Exp: -2, Valid: true})
		assert.Error(t, err)
	})

	t.Run("negative and out of range rejected", func(t *testing.T) {
		_, err := uint64FromNumeric(pgtype.Numeric{Int: big.NewInt(-1), Valid: true})
		assert.Error(t, err)

		tooBig := new(big.Int).Add(new(big.Int).SetUint64(math.MaxUint64), big.NewInt(1))
		_, err = uint64FromNumeric(pgtype.Numeric{Int: tooBig, Valid: true})
		assert.Error(t, err)
	})

	t.Run("null", func(t *testing.T) {
		v, err := nullableUint64FromNumeric(pgtype.Numeric{})
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = uint64FromNumeric(pgtype.Numeric{})
		assert.Error(t, err)
	})
}
