package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/jwt"
)

const testSecret = "schedctl-test-secret-2026"

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: "+testSecret+"\nlog:\n  level: error\n"), 0o600))
	return path
}

func TestTokenCommand(t *testing.T) {
	path := writeTestConfig(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--config", path, "--operator", "alice", "--role", "viewer"})
	require.NoError(t, rootCmd.Execute())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	claims, err := jwt.NewManager(&cfg.Auth).ParseToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.OperatorID)
	assert.Equal(t, jwt.RoleViewer, claims.Role)
}

func TestTokenCommand_UnknownRole(t *testing.T) {
	path := writeTestConfig(t)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"token", "--config", path, "--operator", "bob", "--role", "owner"})
	assert.Error(t, rootCmd.Execute())

	role = jwt.RoleAdmin
}
