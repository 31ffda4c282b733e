package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "LOCK_TIMEOUT", "SHIPPING_CHARGE", "STORE_DRIVER"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.True(t, cfg.Pricing.ShippingCharge.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "INR", cfg.Pricing.Currency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("SHIPPING_CHARGE", "12.50")
	t.Setenv("PROJECTOR_WORKERS", "3")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := Load()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "12.5", cfg.Pricing.ShippingCharge.String())
	assert.Equal(t, 3, cfg.ProjectorWorkers)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT", "soon")
	t.Setenv("SHIPPING_CHARGE", "-4")
	t.Setenv("PROJECTOR_WORKERS", "zero")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.True(t, cfg.Pricing.ShippingCharge.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 8, cfg.ProjectorWorkers)
}
