package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// CredentialsFile is the INI file holding Jira and SVN credentials.
const CredentialsFile = "credentials.ini"

// ErrNoCredentials is returned when no credentials file can be found.
var ErrNoCredentials = errors.New("credentials file not found")

// Credentials mirrors the [jira] and [svn] sections of credentials.ini.
type Credentials struct {
	Jira JiraCredentials `mapstructure:"jira"`
	SVN  SVNCredentials  `mapstructure:"svn"`
}

// JiraCredentials authenticate against the Jira REST API.
// APIToken wins over Password when both are set.
type JiraCredentials struct {
	BaseURL      string `mapstructure:"base_url"`
	Username     string `mapstructure:"username"`
	APIToken     string `mapstructure:"api_token"`
	Password     string `mapstructure:"password"`
	VerifySSL    bool   `mapstructure:"verify_ssl"`
	DownloadPath string `mapstructure:"download_path"`
}

// Secret returns the API token, or the password when no token is set.
func (j JiraCredentials) Secret() string {
	if j.APIToken != "" {
		return j.APIToken
	}
	return j.Password
}

// SVNCredentials authenticate the svn CLI.
type SVNCredentials struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CredentialsPath resolves the credentials file. Order: the environment
// variables named in envVars, ~/.devmind/credentials.ini, ./credentials.ini.
func CredentialsPath(envVars ...string) (string, error) {
	var candidates []string
	for _, name := range envVars {
		if p := os.Getenv(name); p != "" {
			candidates = append(candidates, p)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DirName, CredentialsFile))
	}
	candidates = append(candidates, CredentialsFile)

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (looked in %v)", ErrNoCredentials, candidates)
}

// LoadCredentials reads an INI credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	v.SetDefault("jira.verify_ssl", true)
	v.SetDefault("jira.download_path", "downloads")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading credentials %s: %w", path, err)
	}

	creds := &Credentials{}
	if err := v.Unmarshal(creds); err != nil {
		return nil, fmt.Errorf("config: decoding credentials: %w", err)
	}
	return creds, nil
}

// FindCredentials resolves and loads the credentials file in one step.
func FindCredentials() (*Credentials, error) {
	path, err := CredentialsPath("JIRA_CREDENTIALS_PATH", "SVN_CREDENTIALS_PATH")
	if err != nil {
		return nil, err
	}
	return LoadCredentials(path)
}
