package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
database:
  host: "db.local"
  port: "5432"
  user: "app"
  dbname: "quiz_arena"
jwt:
  secret: "test-secret"
game:
  max_players: 10
  inter_question_delay_ms: 3000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 10, cfg.Game.MaxPlayers)
	assert.Equal(t, 3000, cfg.Game.InterQuestionDelayMs)

	// Незаданные игровые параметры берутся из значений по умолчанию
	assert.Equal(t, 2, cfg.Game.MinPlayersToStart)
	assert.Equal(t, 30, cfg.Game.RetentionCompletedMin)
	assert.Equal(t, 5, cfg.Game.RetentionAbandonedMin)
	assert.Equal(t, 512, cfg.WebSocket.Limits.MaxMessageSize)
	assert.Equal(t, 128, cfg.WebSocket.Limits.ClientSendBuffer)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	path := writeConfigFile(t, `
database:
  host: "db.local"
  user: "app"
  dbname: "quiz_arena"
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoad_IncompleteDatabase(t *testing.T) {
	path := writeConfigFile(t, `
jwt:
  secret: "test-secret"
database:
  host: "db.local"
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database configuration")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9090"
database:
  host: "db.local"
  user: "app"
  dbname: "quiz_arena"
jwt:
  secret: "file-secret"
`)

	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestPostgresConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: "5432", User: "app",
		Password: "pw", DBName: "quiz_arena", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=app password=pw dbname=quiz_arena sslmode=disable",
		d.PostgresConnectionString(),
	)
}
