// Package workspace prepares the per-registration working directory the
// infrastructure tool runs in.
//
// A workspace is keyed by registration id, so tenants never share mutable
// filesystem state. Preparing a workspace twice yields the same file set:
// stale template files are removed before the template is copied again.
// Tool state (.terraform, *.tfstate) is preserved so a retried apply
// reconciles with what already exists instead of duplicating it.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/uuid"

	dErrors "onboarding/pkg/domain-errors"
)

// ControlFileName is the generated root module file.
const ControlFileName = "main.tf"

// Manager owns the template directory and the workspace root.
type Manager struct {
	templateDir string
	root        string
	logger      *slog.Logger
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(templateDir, root string, opts ...Option) *Manager {
	m := &Manager{templateDir: templateDir, root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModuleSource is the path the control file references as module source.
func (m *Manager) ModuleSource() string {
	if abs, err := filepath.Abs(m.templateDir); err == nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(m.templateDir)
}

// Path returns the workspace directory for id without touching the disk.
func (m *Manager) Path(id uuid.UUID) string {
	return filepath.Join(m.root, id.String())
}

// PrepareWorkspace creates the workspace for id if absent and refreshes it
// from the template.
func (m *Manager) PrepareWorkspace(ctx context.Context, id uuid.UUID) (string, error) {
	info, err := os.Stat(m.templateDir)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeWorkspace, "template directory unreadable")
	}
	if !info.IsDir() {
		return "", dErrors.New(dErrors.CodeWorkspace, "template path is not a directory")
	}

	dir := m.Path(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeWorkspace, "create workspace")
	}
	if err := removeStale(dir); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeWorkspace, "clean workspace")
	}

	copied := 0
	err = filepath.WalkDir(m.templateDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(m.templateDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if isToolState(d.Name()) && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dir, rel), 0o755)
		}
		if isToolState(d.Name()) {
			return nil
		}
		copied++
		return copyFile(path, filepath.Join(dir, rel))
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeWorkspace, "copy template")
	}

	m.logger.DebugContext(ctx, "workspace prepared",
		"registration_id", id,
		"path", dir,
		"files", copied,
	)
	return dir, nil
}

var controlFile = template.Must(template.New(ControlFileName).Parse(`module "registration_infra" {
  source          = "{{ .Source }}"
  registration_id = "{{ .RegistrationID }}"
  user_domain     = var.user_domain
}

output "dfm_url" { value = module.registration_infra.dfm_url }
output "nifi_0_url" { value = module.registration_infra.nifi_0_url }
output "nifi_1_url" { value = module.registration_infra.nifi_1_url }
output "nifi_registry_url" { value = module.registration_infra.nifi_registry_url }
output "server_public_ip" { value = module.registration_infra.server_public_ip }
`))

// GenerateControlFile (re)writes the root module for id. It is rendered on
// every attempt since the parameters can change between attempts.
func (m *Manager) GenerateControlFile(dir string, id uuid.UUID, moduleSource string) error {
	f, err := os.Create(filepath.Join(dir, ControlFileName))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeWorkspace, "create control file")
	}
	defer f.Close()

	err = controlFile.Execute(f, struct {
		Source         string
		RegistrationID string
	}{
		Source:         moduleSource,
		RegistrationID: id.String(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeWorkspace, "render control file")
	}
	return nil
}

// DeriveTenantIdentifier turns a contact name into a DNS-label-safe
// identifier, falling back to "demo<id>".
func DeriveTenantIdentifier(name string, id uuid.UUID) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	ident := strings.Trim(b.String(), "-")
	if len(ident) > 63 {
		ident = strings.TrimRight(ident[:63], "-")
	}
	if ident == "" {
		return "demo" + id.String()
	}
	return ident
}

func isToolState(name string) bool {
	return name == ".terraform" || name == ".terraform.lock.hcl" || strings.HasPrefix(name, "terraform.tfstate")
}

func removeStale(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if isToolState(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
