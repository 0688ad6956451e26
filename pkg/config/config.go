package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseName string `envconfig:"DATABASE_NAME" required:"true"`

	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	GitHubOwner  string `envconfig:"GITHUB_OWNER" required:"true"`
	GitHubRepo   string `envconfig:"GITHUB_REPO" required:"true"`
	GitHubBranch string `envconfig:"GITHUB_BRANCH" default:"main"`
	PlaylistFile string `envconfig:"PLAYLIST_FILE" default:"videos.json"`

	GitHubAPIBaseURL string `envconfig:"GITHUB_API_BASE_URL" default:"https://api.github.com"`
}

func NewConfig() (*Config, error) {
	cfg := new(Config)
	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
