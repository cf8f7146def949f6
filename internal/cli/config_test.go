package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

const testProperties = `gitlab.api.url=https://gitlab.example.com
gitlab.api.key=glpat-admin-secret
gitlab.role.default=
gitlab.role.admin.mapping.enabled=true
github.principal.cache.ttl=PT5M
`

func writeProperties(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitlabauth.properties")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestConfigViewRedactsSecrets(t *testing.T) {
	path := writeProperties(t, testProperties)

	out, err := execute(t, "config", "view", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "glpat-admin-secret")
	assert.Contains(t, out, "[REDACTED]")

	var view map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	gitlab := view["gitlab"].(map[string]any)
	assert.Equal(t, "https://gitlab.example.com", gitlab["apiUrl"])
	assert.Equal(t, "[REDACTED]", gitlab["apiKey"])
	assert.Equal(t, true, gitlab["adminMappingEnabled"])
}

func TestConfigViewJSON(t *testing.T) {
	path := writeProperties(t, testProperties)

	out, err := execute(t, "config", "view", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "glpat-admin-secret")

	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Contains(t, view, "gitlab")
	assert.Contains(t, view, "cache")
}

func TestConfigViewErrors(t *testing.T) {
	_, err := execute(t, "config", "view", "--config", filepath.Join(t.TempDir(), "missing.properties"))
	assert.ErrorContains(t, err, "reading configuration")

	_, err = execute(t, "config", "view", "--config", "")
	assert.ErrorContains(t, err, "--config must not be empty")

	path := writeProperties(t, testProperties)
	_, err = execute(t, "config", "view", "--config", path, "-o", "xml")
	assert.ErrorContains(t, err, "output format must be one of")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	// no api key and no default role
	path := writeProperties(t, "gitlab.api.url=https://gitlab.example.com\n")

	_, err := execute(t, "serve", "--config", path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "gitlab.api.key")
}

func TestServeRejectsArguments(t *testing.T) {
	_, err := execute(t, "serve", "alice", "token")
	assert.Error(t, err)
}
