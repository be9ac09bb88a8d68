package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

func TestClassify(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	tests := []struct {
		name        string
		ctx         context.Context
		err         error
		unavailable bool
	}{
		{"deadlock", context.Background(), &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"lock wait timeout", context.Background(), fmt.Errorf("update stock: %w", &mysql.MySQLError{Number: 1205}), true},
		{"duplicate entry", context.Background(), &mysql.MySQLError{Number: 1062}, false},
		{"bad connection", context.Background(), driver.ErrBadConn, true},
		{"deadline", context.Background(), context.DeadlineExceeded, true},
		{"expired context", expired, errors.New("interrupted"), true},
		{"business rule", context.Background(), &domain.InsufficientStockError{ProductID: "p1", Requested: 1}, false},
		{"plain error", context.Background(), errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(got, domain.ErrStoreUnavailable))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classify(context.Background(), nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
