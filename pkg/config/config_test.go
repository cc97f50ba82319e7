package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROW_STORE", StoreMemory)
	t.Setenv("AUTH_PROVIDER", AuthJWT)
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, "linkup", cfg.MongoDatabase)
	assert.InDelta(t, 0.6, cfg.BreakerFailureRatio, 1e-9)
}

func TestLoadRejectsBadBreakerRatio(t *testing.T) {
	t.Setenv("ROW_STORE", StoreMemory)
	t.Setenv("AUTH_PROVIDER", AuthJWT)
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("BREAKER_FAILURE_RATIO", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory with jwt", Config{RowStore: StoreMemory, AuthProvider: AuthJWT, SupabaseJWTSecret: "s"}, true},
		{"supabase needs url", Config{RowStore: StoreSupabase, AuthProvider: AuthJWT, SupabaseJWTSecret: "s"}, false},
		{"postgres needs dsn", Config{RowStore: StorePostgres, AuthProvider: AuthJWT, SupabaseJWTSecret: "s"}, false},
		{"mongo", Config{RowStore: StoreMongo, MongoURI: "mongodb://x", AuthProvider: AuthJWT, SupabaseJWTSecret: "s"}, true},
		{"firebase needs credentials", Config{RowStore: StoreMemory, AuthProvider: AuthFirebase}, false},
		{"firebase emulator", Config{RowStore: StoreMemory, AuthProvider: AuthFirebase, FirebaseEmulatorHost: "127.0.0.1:9099"}, true},
		{"unknown store", Config{RowStore: "sqlite", AuthProvider: AuthJWT, SupabaseJWTSecret: "s"}, false},
		{"unknown auth", Config{RowStore: StoreMemory, AuthProvider: "ldap"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
