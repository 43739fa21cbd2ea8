package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/platform/logger"
	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/testutil"
)

func writeTemplate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "variables.tf"), []byte(`variable "user_domain" {}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ec2.tf"), []byte(`resource "aws_instance" "dfm" {}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "boot.sh"), []byte("#!/bin/sh\n"), 0o755))
	return dir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	}))
	sort.Strings(files)
	return files
}

func TestPrepareWorkspace(t *testing.T) {
	ctx := context.Background()
	template := writeTemplate(t)
	m := New(template, t.TempDir(), WithLogger(logger.Discard()))
	id := uuid.New()
	want := []string{"ec2.tf", "scripts/boot.sh", "variables.tf"}

	testutil.Given(t, "a fresh registration", func(t *testing.T) {
		dir, err := m.PrepareWorkspace(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, m.Path(id), dir)
		assert.Equal(t, want, listFiles(t, dir))
	})

	testutil.When(t, "the workspace is prepared again after stray files appeared", func(t *testing.T) {
		dir := m.Path(id)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.tf"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ec2.tf"), []byte("edited"), 0o644))

		_, err := m.PrepareWorkspace(ctx, id)
		require.NoError(t, err)

		testutil.Then(t, "it holds exactly the template file set", func(t *testing.T) {
			assert.Equal(t, want, listFiles(t, dir))
			content, err := os.ReadFile(filepath.Join(dir, "ec2.tf"))
			require.NoError(t, err)
			assert.Equal(t, `resource "aws_instance" "dfm" {}`, string(content))
		})
	})

	testutil.When(t, "tool state exists from an earlier attempt", func(t *testing.T) {
		dir := m.Path(id)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "terraform.tfstate"), []byte("{}"), 0o644))

		_, err := m.PrepareWorkspace(ctx, id)
		require.NoError(t, err)

		testutil.Then(t, "the state is kept", func(t *testing.T) {
			assert.FileExists(t, filepath.Join(dir, "terraform.tfstate"))
		})
	})
}

func TestPrepareWorkspaceMissingTemplate(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "nope"), t.TempDir(), WithLogger(logger.Discard()))
	_, err := m.PrepareWorkspace(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWorkspace))
}

func TestGenerateControlFile(t *testing.T) {
	dir := t.TempDir()
	m := New("/opt/tf/base", t.TempDir())
	id := uuid.MustParse("6f1c1e3e-8a57-4d8e-9a1b-2f1d2a3b4c5d")

	require.NoError(t, m.GenerateControlFile(dir, id, "/opt/tf/base"))
	require.NoError(t, m.GenerateControlFile(dir, id, "/opt/tf/v2"))

	content, err := os.ReadFile(filepath.Join(dir, ControlFileName))
	require.NoError(t, err)
	body := string(content)
	assert.Contains(t, body, `source          = "/opt/tf/v2"`)
	assert.Contains(t, body, `registration_id = "6f1c1e3e-8a57-4d8e-9a1b-2f1d2a3b4c5d"`)
	assert.Contains(t, body, "user_domain     = var.user_domain")
	for _, out := range []string{"dfm_url", "nifi_0_url", "nifi_1_url", "nifi_registry_url", "server_public_ip"} {
		assert.Contains(t, body, `output "`+out+`"`)
	}
	assert.NotContains(t, body, "/opt/tf/base")
}

func TestDeriveTenantIdentifier(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	cases := map[string]string{
		"Jane Doe":         "janedoe",
		"  O'Brien-Smith ": "obrien-smith",
		"Zoë Ünal":         "zonal",
		"-leading-":        "leading",
		"":                 "demo" + id.String(),
		"!!!":              "demo" + id.String(),
	}
	cases[strings.Repeat("a", 80)] = strings.Repeat("a", 63)
	for in, want := range cases {
		assert.Equal(t, want, DeriveTenantIdentifier(in, id), "input %q", in)
	}
}
