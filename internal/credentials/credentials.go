// Package credentials loads the service-account key used to reach Firestore
// and works out which project to target.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2/google"
)

const (
	DatastoreScope = "https://www.googleapis.com/auth/datastore"

	// EmulatorProject is used when talking to the emulator without a project id.
	EmulatorProject = "demo-project"
)

var ErrNoProject = errors.New("no project id could be resolved")

type ServiceAccount struct {
	Path        string
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`

	Credentials *google.Credentials `json:"-"`
}

// Load reads a service-account key file. Relative paths are resolved against
// the working directory. The file must exist and parse as a credential.
func Load(ctx context.Context, path string) (*ServiceAccount, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve service account path %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("service account file not found: %s", abs)
		}
		return nil, fmt.Errorf("failed to read service account %s: %w", abs, err)
	}

	sa := &ServiceAccount{Path: abs}
	if err := json.Unmarshal(data, sa); err != nil {
		return nil, fmt.Errorf("failed to load service account JSON %s: %w", abs, err)
	}
	if sa.Type != "" && sa.Type != "service_account" {
		return nil, fmt.Errorf("%s holds a %q credential, expected service_account", abs, sa.Type)
	}
	if sa.ClientEmail == "" {
		return nil, fmt.Errorf("%s has no client_email", abs)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, DatastoreScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account %s: %w", abs, err)
	}
	sa.Credentials = creds

	return sa, nil
}

// Sources are the inputs to project id resolution, highest priority first.
type Sources struct {
	Flag        string
	Account     *ServiceAccount
	Env         []string // values of GOOGLE_CLOUD_PROJECT, GCLOUD_PROJECT
	UseEmulator bool

	// DetectDefault looks up the project of the application default
	// credentials. Nil skips the lookup.
	DetectDefault func(ctx context.Context) string
}

// ResolveProject picks the project id: flag, then the service account's
// project_id, then the environment, then application default credentials.
// The emulator falls back to demo-project; otherwise ErrNoProject.
func ResolveProject(ctx context.Context, src Sources) (string, error) {
	if src.Flag != "" {
		return src.Flag, nil
	}
	if src.Account != nil && src.Account.ProjectID != "" {
		return src.Account.ProjectID, nil
	}
	for _, v := range src.Env {
		if v != "" {
			return v, nil
		}
	}
	if src.UseEmulator {
		return EmulatorProject, nil
	}
	if src.DetectDefault != nil {
		if id := src.DetectDefault(ctx); id != "" {
			return id, nil
		}
	}
	return "", ErrNoProject
}

// DefaultProject returns the project of the application default credentials,
// or "" when none are configured.
func DefaultProject(ctx context.Context) string {
	creds, err := google.FindDefaultCredentials(ctx, DatastoreScope)
	if err != nil {
		return ""
	}
	return creds.ProjectID
}
