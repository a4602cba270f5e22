package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QueryMeter measures repository query latency
type QueryMeter interface {
	MeasureDatabaseQuery(repository, method string) func()
}

type noopMeter struct{}

func (noopMeter) MeasureDatabaseQuery(repository, method string) func() { return func() {} }

func meterOrNoop(m QueryMeter) QueryMeter {
	if m == nil {
		return noopMeter{}
	}
	return m
}

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// numericFromUint64 encodes an amount for a NUMERIC(20,0) column
func numericFromUint64(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// uint64FromNumeric decodes a NUMERIC(20,0) column into an amount
func uint64FromNumeric(n pgtype.Numeric) (uint64, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("invalid numeric amount")
	}
	v := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	} else if n.Exp < 0 {
		divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		var rem big.Int
		v.QuoRem(v, divisor, &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric amount %s has a fractional part", n.Int.String())
		}
	}
	if v.Sign() < 0 || v.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("numeric amount %s out of range", v.String())
	}
	return v.Uint64(), nil
}

// nullableUint64FromNumeric decodes a nullable NUMERIC(20,0) column
func nullableUint64FromNumeric(n pgtype.Numeric) (*uint64, error) {
	if !n.Valid {
		return nil, nil
	}
	v, err := uint64FromNumeric(n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func copy32(dst *[32]byte, src []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(src))
	}
	copy(dst[:], src)
	return nil
}
