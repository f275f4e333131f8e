package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		TriggerName    string `mapstructure:"trigger_name"`
		PollTimeoutSec int    `mapstructure:"poll_timeout_sec"`
	} `mapstructure:"telegram"`

	Ollama struct {
		URL      string
		Model    string
		TimeoutS int `mapstructure:"timeout_s"`
	} `mapstructure:"ollama"`

	Backup struct {
		Time     string // "HH:MM", local to Timezone
		Timezone string
		Dir      string
	} `mapstructure:"backup"`

	Secret struct {
		KeyEnv    string `mapstructure:"key_env"`
		KeyFile   string `mapstructure:"key_file"`
		TokenFile string `mapstructure:"token_file"`
	} `mapstructure:"secret"`

	Bot struct {
		RateLimitSeconds float64 `mapstructure:"rate_limit_seconds"`
	} `mapstructure:"bot"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("telegram.trigger_name", "daddygpt")
	v.SetDefault("telegram.poll_timeout_sec", 30)
	v.SetDefault("ollama.url", "http://127.0.0.1:11434")
	v.SetDefault("ollama.model", "gemma3:1b")
	v.SetDefault("ollama.timeout_s", 180)
	v.SetDefault("backup.time", "02:00")
	v.SetDefault("backup.timezone", "Asia/Hebron")
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("secret.key_env", "BOT_TOKEN_KEY")
	v.SetDefault("secret.key_file", "token.key")
	v.SetDefault("secret.token_file", "token.enc")
	v.SetDefault("bot.rate_limit_seconds", 1.5)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
