package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("MEMBERSHIP_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, BackendMemory, cfg.Stores.Records)
	assert.Equal(t, BackendMemory, cfg.Stores.Membership)
	assert.Equal(t, "stub", cfg.Payment.Provider)
	assert.Equal(t, 5*time.Second, cfg.Registration.TxTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MEMBERSHIP_BACKEND", "dynamodb")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("REGISTRATION_TX_TIMEOUT", "750ms")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, BackendDynamoDB, cfg.Stores.Membership)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Registration.TxTimeout)
	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
}
