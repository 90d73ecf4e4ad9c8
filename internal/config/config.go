package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	StorageDriver string // memory/file/sqlite/postgres
	StorageDir    string // fileドライバの保存先
	SQLitePath    string // sqliteドライバのDBファイル
	DatabaseURL   string // postgresドライバのDSN

	CatalogPath string // 商品カタログ（YAML）
	CartKey     string // 永続スロットのキー

	HydrateTimeout time.Duration
	WriteTimeout   time.Duration

	RateLimit float64 // 1IPあたりのreq/s（0で無効）
}

// Loadは .env（あれば）と環境変数から読む
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	hydrateTimeout, err := durationOr("HYDRATE_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := durationOr("WRITE_TIMEOUT", 3*time.Second)
	if err != nil {
		return Config{}, err
	}

	rateLimit, err := strconv.ParseFloat(getenv("RATE_LIMIT", "20"), 64)
	if err != nil || math.IsNaN(rateLimit) || math.IsInf(rateLimit, 0) || rateLimit < 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT must be non-negative number: %q", os.Getenv("RATE_LIMIT"))
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StorageDriver: getenv("STORAGE_DRIVER", StorageFile),
		StorageDir:    getenv("STORAGE_DIR", "./data"),
		SQLitePath:    getenv("SQLITE_PATH", "./data/storefront.db"),

		CatalogPath: getenv("CATALOG_PATH", "./data/products.yaml"),
		CartKey:     getenv("CART_KEY", "cart"),

		HydrateTimeout: hydrateTimeout,
		WriteTimeout:   writeTimeout,

		RateLimit: rateLimit,
	}

	//必須チェック
	switch cfg.StorageDriver {
	case StorageMemory, StorageFile, StorageSQLite:
	case StoragePostgres:
		dsn, err := postgresDSN()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseURL = dsn
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be one of memory, file, sqlite, postgres: %q", cfg.StorageDriver)
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("PORT must be number: %w", err)
	}

	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

// DATABASE_URL があれば最優先で使う
func postgresDSN() (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return "", fmt.Errorf("POSTGRES_USER is required")
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		return "", fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	name := os.Getenv("POSTGRES_DB")
	if name == "" {
		return "", fmt.Errorf("POSTGRES_DB is required")
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String(), nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
