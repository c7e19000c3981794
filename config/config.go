package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ImportConfig управляет фоновыми сессиями импорта.
type ImportConfig struct {
	PageSize          int    `yaml:"page_size"`
	RetentionHours    int    `yaml:"retention_hours"`
	CleanupInterval   string `yaml:"cleanup_interval"`
	LogDir            string `yaml:"log_dir"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxRetries        int    `yaml:"max_retries"`
	RequestTimeout    string `yaml:"request_timeout"`
}

type OzonConfig struct {
	BaseURL string `yaml:"base_url"`
}

type WildberriesConfig struct {
	StatisticsURL string `yaml:"statistics_url"`
	// Статистика WB пускает примерно раз в минуту; 0 -- лимит по умолчанию.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type YandexConfig struct {
	BaseURL string `yaml:"base_url"`
	// ReportEncoding: "utf-8" или "windows-1251"
	ReportEncoding string `yaml:"report_encoding"`
}

type OneCConfig struct {
	BaseURL  string `yaml:"base_url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ConnectionConfig -- подключение, которое заводится (или обновляется) при старте.
// Ключи лучше передавать через окружение: api_key_env -- имя переменной.
type ConnectionConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Marketplace    string `yaml:"marketplace"`
	MarketplaceID  string `yaml:"marketplace_id"`
	OrganizationID string `yaml:"organization_id"`
	ClientID       string `yaml:"client_id"`
	APIKey         string `yaml:"api_key"`
	APIKeyEnv      string `yaml:"api_key_env"`
	CampaignID     string `yaml:"campaign_id"`
	BaseURL        string `yaml:"base_url"`
}

func (c ConnectionConfig) Key() string {
	if c.APIKeyEnv != "" {
		return getEnv(c.APIKeyEnv, c.APIKey)
	}
	return c.APIKey
}

type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Database    DatabaseConfig     `yaml:"database"`
	Auth        AuthConfig         `yaml:"auth"`
	Import      ImportConfig       `yaml:"import"`
	Ozon        OzonConfig         `yaml:"ozon"`
	Wildberries WildberriesConfig  `yaml:"wildberries"`
	Yandex      YandexConfig       `yaml:"yandex"`
	OneC        OneCConfig         `yaml:"onec"`
	Connections []ConnectionConfig `yaml:"connections"`
}

// LoadConfig читает yaml-файл, затем накладывает переменные окружения (.env подхватывается, если есть).
func LoadConfig(filename string) (*AppConfig, error) {
	_ = godotenv.Load()

	config := Default()
	if filename != "" {
		file, err := os.Open(filename)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", filename, err)
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func Default() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: "data/app.db", Port: "5432"},
		Import: ImportConfig{
			PageSize:          100,
			RetentionHours:    24,
			CleanupInterval:   "10m",
			LogDir:            "logs/imports",
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RequestTimeout:    "60s",
		},
		Ozon:        OzonConfig{BaseURL: "https://api-seller.ozon.ru"},
		Wildberries: WildberriesConfig{StatisticsURL: "https://statistics-api.wildberries.ru"},
		Yandex:      YandexConfig{BaseURL: "https://api.partner.market.yandex.ru", ReportEncoding: "utf-8"},
	}
}

func (c *AppConfig) applyEnv() {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("SQLITE_PATH", c.Database.Path)
	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnv("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("POSTGRES_NAME", c.Database.DBName)
	c.OneC.User = getEnv("ONEC_USER", c.OneC.User)
	c.OneC.Password = getEnv("ONEC_PASSWORD", c.OneC.Password)
	if v, err := strconv.Atoi(getEnv("IMPORT_RETENTION_HOURS", "")); err == nil {
		c.Import.RetentionHours = v
	}
}

func (c *AppConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for i := range c.Connections {
		conn := &c.Connections[i]
		err := validation.ValidateStruct(conn,
			validation.Field(&conn.ID, validation.Required),
			validation.Field(&conn.Marketplace, validation.Required, validation.In("ozon", "wb", "wildberries", "ym", "yandex", "1c")),
			validation.Field(&conn.MarketplaceID, validation.Required),
			validation.Field(&conn.OrganizationID, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("connections[%d]: %w", i, err)
		}
	}
	return validation.ValidateStruct(&c.Import,
		validation.Field(&c.Import.PageSize, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.Import.RetentionHours, validation.Required, validation.Min(1)),
		validation.Field(&c.Import.CleanupInterval, validation.Required, validation.By(isDuration)),
		validation.Field(&c.Import.LogDir, validation.Required),
		validation.Field(&c.Import.RequestsPerMinute, validation.Min(1)),
		validation.Field(&c.Import.MaxRetries, validation.Min(0)),
		validation.Field(&c.Import.RequestTimeout, validation.When(c.Import.RequestTimeout != "", validation.By(isDuration))),
	)
}

func (c ImportConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c ImportConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

func (c ImportConfig) CleanupEvery() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("must be a duration like 10m")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
