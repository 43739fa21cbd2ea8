// Package outputs reads the machine-readable payload of the tool's output step.
package outputs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Names of the outputs declared by the generated control file.
const (
	KeyUI       = "dfm_url"
	KeyWorker0  = "nifi_0_url"
	KeyWorker1  = "nifi_1_url"
	KeyRegistry = "nifi_registry_url"
	KeyPublicIP = "server_public_ip"
)

const (
	workerSuffix   = "/nifi"
	registrySuffix = "/nifi-registry"
)

// Endpoints are the URLs of a provisioned tenant.
type Endpoints struct {
	UIURL       string   `json:"ui_url"`
	WorkerURLs  []string `json:"worker_urls"`
	RegistryURL string   `json:"registry_url,omitempty"`
	PublicIP    string   `json:"public_ip,omitempty"`
	// Placeholder is set when UIURL was synthesised because the payload was
	// unusable. Downstream bootstrap must not target it.
	Placeholder bool `json:"placeholder"`
}

// PlaceholderURL is the synthetic UI address used when outputs are missing.
func PlaceholderURL(id uuid.UUID) string {
	return fmt.Sprintf("http://ec2-instance-%s.amazonaws.com:8443", id)
}

type output struct {
	Value any `json:"value"`
}

// Parse decodes raw into Endpoints. A malformed payload is not fatal: the
// returned Endpoints carry the placeholder UI URL and no other URLs, and the
// error describes what went wrong for logging.
func Parse(raw string, id uuid.UUID) (Endpoints, error) {
	var payload map[string]output
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return Endpoints{UIURL: PlaceholderURL(id), WorkerURLs: []string{}, Placeholder: true},
			fmt.Errorf("decode outputs: %w", err)
	}

	e := Endpoints{WorkerURLs: []string{}}
	for _, key := range []string{KeyWorker0, KeyWorker1} {
		if v := stringValue(payload, key); v != "" {
			e.WorkerURLs = append(e.WorkerURLs, v+workerSuffix)
		}
	}
	if v := stringValue(payload, KeyRegistry); v != "" {
		e.RegistryURL = v + registrySuffix
	}
	e.PublicIP = stringValue(payload, KeyPublicIP)

	if e.UIURL = stringValue(payload, KeyUI); e.UIURL == "" {
		e.UIURL = PlaceholderURL(id)
		e.Placeholder = true
		return e, fmt.Errorf("decode outputs: %s missing", KeyUI)
	}
	return e, nil
}

func stringValue(payload map[string]output, key string) string {
	o, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := o.Value.(string)
	if !ok {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
