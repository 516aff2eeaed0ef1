package configuration

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const FilePath = "configuration/configuration.yaml"

type Config struct {
	GithubClientSettings GithubClientSettings `yaml:"github_client_settings"`
	CveClientSettings    CveClientSettings    `yaml:"cve_client_settings"`
	BountyClientSettings BountyClientSettings `yaml:"bounty_client_settings"`
}

type GithubClientSettings struct {
	BaseUrl  string `yaml:"base_url"`
	TokenEnv string `yaml:"token_env"`
}

type CveClientSettings struct {
	BaseUrl   string `yaml:"base_url"`
	ApiKeyEnv string `yaml:"api_key_env"`
}

type BountyClientSettings struct {
	BaseUrl string `yaml:"base_url"`
}

// Load reads the yaml configuration, falling back to defaults when no file
// is present. A .env alongside the binary fills the token variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := defaults()

	data, err := os.ReadFile(FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		GithubClientSettings: GithubClientSettings{
			BaseUrl:  "https://api.github.com",
			TokenEnv: "GITHUB_AUTH_TOKEN",
		},
		CveClientSettings: CveClientSettings{
			BaseUrl:   "https://services.nvd.nist.gov/rest/json/cves/2.0",
			ApiKeyEnv: "NVD_API_KEY",
		},
		BountyClientSettings: BountyClientSettings{
			BaseUrl: "https://huntr.dev/bounties",
		},
	}
}

// GithubToken resolves the personal access token from the configured
// environment variable. Empty means unauthenticated requests.
func (c *Config) GithubToken() string {
	return os.Getenv(c.GithubClientSettings.TokenEnv)
}

// NvdApiKey resolves the NVD api key from the configured environment
// variable. Without one the NVD enforces a much lower rate limit.
func (c *Config) NvdApiKey() string {
	return os.Getenv(c.CveClientSettings.ApiKeyEnv)
}

// Save writes the configuration back to disk, creating the directory when
// missing. Used by the setup command.
func (c *Config) Save() error {
	if err := os.MkdirAll("configuration", 0o755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshalling configuration: %w", err)
	}

	if err := os.WriteFile(FilePath, data, 0o644); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}

	return nil
}

// RequestTimeout bounds every outbound http call.
const RequestTimeout = 1 * time.Minute
