package config

import (
	"os"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/folio.yaml"
)

// DefaultOrganizerTemplate is the path template used when none is configured.
const DefaultOrganizerTemplate = "{Author}/{Title} ({Year}) [{ISBN13}].{ext}"

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5" validate:"min=0"`
	Hostname                  string        `koanf:"hostname"`
	ServerHost                string        `koanf:"server_host" default:"0.0.0.0"`
	ServerPort                int           `koanf:"server_port" default:"3689" validate:"min=1,max=65535"`
	WorkerProcesses           int           `koanf:"worker_processes" default:"2" validate:"min=1"`

	ScanExtensions  []string `koanf:"scan_extensions" default:"[\".epub\",\".pdf\"]"`
	ScanHashWorkers int      `koanf:"scan_hash_workers" default:"4" validate:"min=1"`

	EnrichmentCacheTTL       time.Duration `koanf:"enrichment_cache_ttl" default:"720h"`
	EnrichmentTimeout        time.Duration `koanf:"enrichment_timeout" default:"30s"`
	EnrichmentMaxRetries     int           `koanf:"enrichment_max_retries" default:"3" validate:"min=0"`
	EnrichmentRetryBaseDelay time.Duration `koanf:"enrichment_retry_base_delay" default:"500ms"`
	EnrichmentRetryMaxDelay  time.Duration `koanf:"enrichment_retry_max_delay" default:"10s"`

	OpenLibraryURL         string        `koanf:"open_library_url" default:"https://openlibrary.org"`
	OpenLibraryCoversURL   string        `koanf:"open_library_covers_url" default:"https://covers.openlibrary.org"`
	OpenLibraryMinInterval time.Duration `koanf:"open_library_min_interval" default:"1s"`
	OpenLibraryWeight      float64       `koanf:"open_library_weight" default:"1.0"`
	GoogleBooksURL         string        `koanf:"google_books_url" default:"https://www.googleapis.com/books/v1"`
	GoogleBooksMinInterval time.Duration `koanf:"google_books_min_interval" default:"500ms"`
	GoogleBooksWeight      float64       `koanf:"google_books_weight" default:"0.9"`
	GoogleBooksAPIKey      string        `koanf:"google_books_api_key"`

	LibraryRoot       string `koanf:"library_root"`
	OrganizerMode     string `koanf:"organizer_mode" default:"copy" validate:"oneof=reference copy move"`
	OrganizerTemplate string `koanf:"organizer_template"`
}

// New loads the configuration from defaults, .env files, the YAML file named
// by CONFIG_FILE, and the environment, in that order of precedence.
func New() (*Config, error) {
	return Load(nil)
}

// Load is New with a hook that can fill in values after every source has been
// read and before validation runs.
func Load(fallback func(cfg *Config)) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.OrganizerTemplate = DefaultOrganizerTemplate

	// A missing .env is the common case.
	_ = godotenv.Load()

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if cfg.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		cfg.Hostname = hostname
	}

	if fallback != nil {
		fallback(cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a configuration backed by an in-memory database with
// intervals short enough for tests.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryDelay = 10 * time.Millisecond
	cfg.Hostname = "test"
	cfg.ServerHost = "127.0.0.1"
	cfg.EnrichmentTimeout = 5 * time.Second
	cfg.EnrichmentRetryBaseDelay = time.Millisecond
	cfg.EnrichmentRetryMaxDelay = 10 * time.Millisecond
	cfg.OpenLibraryMinInterval = 0
	cfg.GoogleBooksMinInterval = 0
	cfg.OrganizerTemplate = DefaultOrganizerTemplate
	return cfg
}

func validate(cfg *Config) error {
	v := validator.New()
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}
	fe := verrs[0]
	key := toSnakeCase(fe.StructField())
	envName := strings.ToUpper(key)
	if fe.Tag() == "required" {
		return errors.Errorf("missing required config: %s (%s)", envName, key)
	}
	return errors.Errorf("invalid config: %s (%s) failed %q validation", envName, key, fe.Tag())
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = struct{}{}
	}
	return keys
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before an upper-case rune that starts a new word, keeping
			// acronyms like URL or TTL together.
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
