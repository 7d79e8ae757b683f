package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("OBJECT_STORE", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "local", cfg.ObjectStoreType)
	assert.Equal(t, "inline", cfg.Enrichment.Dispatch)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
	assert.Equal(t, "dev-secret", cfg.JWT.Secret)
	assert.NotEmpty(t, cfg.LLM.Model)
}

func TestLoadNormalizesValues(t *testing.T) {
	t.Setenv("ENV", "Prod")
	t.Setenv("DATABASE_URL", "postgres://localhost/legaldoc")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("OBJECT_STORE", " MINIO ")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LLM_MODEL", "gpt-4.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "minio", cfg.ObjectStoreType)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadSQSDispatchRequiresQueue(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("ENRICHMENT_DISPATCH", "sqs")
	t.Setenv("SQS_QUEUE_URL", "")

	_, err := Load()
	require.Error(t, err)
}
