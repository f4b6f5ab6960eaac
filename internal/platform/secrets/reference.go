package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const latestVersion = "latest"

// reference is a parsed secret://name?version=N&project=P pointer.
type reference struct {
	name    string
	version string
	project string
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q in %q", u.Scheme, raw)
	}
	ref := reference{
		name:    strings.Trim(u.Host+u.Path, "/"),
		version: strings.TrimSpace(u.Query().Get("version")),
		project: strings.TrimSpace(u.Query().Get("project")),
	}
	if ref.name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}
	if ref.version == "" {
		ref.version = latestVersion
	}
	return ref, nil
}

func (r reference) String() string { return "secret://" + r.name }

// cacheKey identifies one version of a secret independent of the project it lives in.
func (r reference) cacheKey() string { return r.String() + "@" + r.version }

func (r reference) resourceName(defaultProject string) (string, bool) {
	project := r.project
	if project == "" {
		project = defaultProject
	}
	if project == "" {
		return "", false
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.name, r.version), true
}
