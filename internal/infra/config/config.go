package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"UTC"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Web struct {
		Host  string `envconfig:"WEB_HOST" default:"0.0.0.0"`
		Port  int    `envconfig:"WEB_PORT" default:"5000"`
		Token string `envconfig:"DASHBOARD_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		PostEvents string `envconfig:"POST_EVENTS_QUEUE" default:"post_events"`
	} `envconfig:""`

	Generator struct {
		Provider string `envconfig:"GENERATOR_PROVIDER" default:"gemini"`
	} `envconfig:""`

	Gemini struct {
		APIKey  string        `envconfig:"GEMINI_API_KEY"`
		Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash-exp"`
		Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Twitter struct {
		APIKey            string `envconfig:"TWITTER_API_KEY"`
		APISecret         string `envconfig:"TWITTER_API_SECRET"`
		AccessToken       string `envconfig:"TWITTER_ACCESS_TOKEN"`
		AccessTokenSecret string `envconfig:"TWITTER_ACCESS_TOKEN_SECRET"`
		BaseURL           string `envconfig:"TWITTER_BASE_URL" default:"https://api.twitter.com"`
	} `envconfig:""`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		AdminChatID int64  `envconfig:"TG_ADMIN_CHAT_ID"`
	} `envconfig:""`

	Schedule struct {
		PostInterval      time.Duration `envconfig:"POST_INTERVAL" default:"3h30m"`
		QueuePollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"5m"`
		MaxPostsPerDay    int           `envconfig:"MAX_POSTS_PER_DAY" default:"6"`
		RepostCooldown    time.Duration `envconfig:"REPOST_COOLDOWN" default:"0s"`
		PostDelayMin      time.Duration `envconfig:"POST_DELAY_MIN" default:"1m"`
		PostDelayMax      time.Duration `envconfig:"POST_DELAY_MAX" default:"5m"`
		ThreadDelay       time.Duration `envconfig:"THREAD_DELAY" default:"2s"`
	} `envconfig:""`

	Content struct {
		MinLength         int     `envconfig:"CONTENT_MIN_LENGTH" default:"50"`
		MaxLength         int     `envconfig:"CONTENT_MAX_LENGTH" default:"280"`
		Temperature       float32 `envconfig:"CONTENT_TEMPERATURE" default:"0.7"`
		TopP              float32 `envconfig:"CONTENT_TOP_P" default:"0.8"`
		TopK              int     `envconfig:"CONTENT_TOP_K" default:"40"`
		MaxTokens         int     `envconfig:"CONTENT_MAX_TOKENS" default:"300"`
		AvoidRecentDays   int     `envconfig:"AVOID_RECENT_POSTS_DAYS" default:"7"`
		SimilarityCeiling float64 `envconfig:"CONTENT_SIMILARITY" default:"0.7"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает окружение без завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// WebAddr адрес дашборда.
func (c AppConfig) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// DedupWindow окно, за которое прошлые публикации учитываются при генерации.
func (c AppConfig) DedupWindow() time.Duration {
	return time.Duration(c.Content.AvoidRecentDays) * 24 * time.Hour
}

// Missing перечисляет незаданные обязательные переменные окружения.
func (c AppConfig) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("PG_DSN", c.PGDSN)
	switch c.Generator.Provider {
	case "openai":
		check("OPENAI_API_KEY", c.OpenAI.APIKey)
	default:
		check("GEMINI_API_KEY", c.Gemini.APIKey)
	}
	check("TWITTER_API_KEY", c.Twitter.APIKey)
	check("TWITTER_API_SECRET", c.Twitter.APISecret)
	check("TWITTER_ACCESS_TOKEN", c.Twitter.AccessToken)
	check("TWITTER_ACCESS_TOKEN_SECRET", c.Twitter.AccessTokenSecret)
	return missing
}

// Validate проверяет согласованность настроек.
func (c AppConfig) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return fmt.Errorf("не заданы переменные окружения: %s", strings.Join(missing, ", "))
	}
	switch c.Generator.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("неизвестный GENERATOR_PROVIDER %q", c.Generator.Provider)
	}
	s := c.Schedule
	if s.MaxPostsPerDay <= 0 {
		return fmt.Errorf("MAX_POSTS_PER_DAY должен быть положительным")
	}
	if s.PostInterval <= 0 || s.QueuePollInterval <= 0 {
		return fmt.Errorf("интервалы расписания должны быть положительными")
	}
	if s.PostDelayMin < 0 || s.PostDelayMax < s.PostDelayMin {
		return fmt.Errorf("POST_DELAY_MIN/POST_DELAY_MAX заданы некорректно")
	}
	if c.Content.MinLength < 0 || c.Content.MaxLength <= c.Content.MinLength {
		return fmt.Errorf("CONTENT_MIN_LENGTH/CONTENT_MAX_LENGTH заданы некорректно")
	}
	return nil
}
