// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	RabbitMQ                `yaml:"rabbitmq"`
	MercadoPago             `yaml:"mercadopago"`
	Telegram                `yaml:"telegram"`
	Reconciler              `yaml:"reconciler"`
	Sweeper                 `yaml:"sweeper"`
	Tiers                   Tiers `yaml:"tiers"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
	RabbitMQPrefetch   int           `yaml:"rabbitmq_prefetch" env-default:"10"`
}

// MercadoPago структура для настройки клиента платёжного шлюза
type MercadoPago struct {
	AccessToken string        `yaml:"access_token" env:"MERCADO_PAGO_ACCESS_TOKEN"`
	APIURL      string        `yaml:"api_url" env-default:"https://api.mercadopago.com/v1"`
	PayerEmail  string        `yaml:"payer_email" env-default:"comprador@teste.com"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env-default:"10s"`
}

// Telegram структура для настройки клиента Bot API
type Telegram struct {
	BotToken          string        `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL    string        `yaml:"telegram_api_url" env-default:"https://api.telegram.org"`
	InviteTTL         time.Duration `yaml:"invite_ttl" env-default:"5m"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env-default:"20"`
}

// Reconciler структура с параметрами цикла опроса статуса платежа
type Reconciler struct {
	PollInterval     time.Duration `yaml:"poll_interval" env-default:"30s"`
	MaxPollAttempts  int           `yaml:"max_poll_attempts" env-default:"17"`
	QueryRetryBudget int           `yaml:"query_retry_budget" env-default:"3"`
}

// Sweeper структура с параметрами цикла отзыва просроченных подписок
type Sweeper struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"24h"`
	RetryInterval time.Duration `yaml:"retry_interval" env-default:"1h"`
}

// Tier описывает тариф: цена, длительность и закрытая группа.
// DurationMonths равный нулю означает пожизненный тариф.
type Tier struct {
	Name           string  `yaml:"name"`
	Title          string  `yaml:"title"`
	Price          float64 `yaml:"price"`
	DurationMonths int     `yaml:"duration_months"`
	GroupID        int64   `yaml:"group_id"`
}

// IsLifetime сообщает, что тариф бессрочный.
func (t Tier) IsLifetime() bool {
	return t.DurationMonths == 0
}

// Tiers — список тарифов из конфигурации.
type Tiers []Tier

// ByName ищет тариф по названию.
func (ts Tiers) ByName(name string) (Tier, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// TierByName ищет тариф по названию.
func (c *Config) TierByName(name string) (Tier, bool) {
	return c.Tiers.ByName(name)
}

// MustLoad функция для загрузки конфига, завершает процесс при любой ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
