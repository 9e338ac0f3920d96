package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewPendingPaymentRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewPendingPaymentRepository(pool)
	assert.NotNil(t, repo)
}
