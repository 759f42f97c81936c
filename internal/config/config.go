// Package config loads the recognized configuration keys (§6) from a YAML
// file with environment-variable overrides, following the layering the
// teacher app uses: .env for local secrets, a YAML file for structured
// defaults, then env vars win over both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type EmbeddingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	Instruction string `yaml:"instruction"`
}

type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	KRecall int `yaml:"k_recall"`
	KFinal  int `yaml:"k_final"`
}

type RerankerConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Model       string `yaml:"model"`
	Instruction string `yaml:"instruction"`
}

type GeneratorConfig struct {
	Backend      string   `yaml:"backend"` // "openai" (default) | "anthropic" | "gemini"
	Endpoint     string   `yaml:"endpoint"`
	APIKey       string   `yaml:"api_key"`
	Model        string   `yaml:"model"`
	MaxNewTokens int      `yaml:"max_new_tokens"`
	Temperature  float64  `yaml:"temperature"`
	TopP         float64  `yaml:"top_p"`
	Stop         []string `yaml:"stop"`
}

type BrokerConfig struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
	Group string `yaml:"group"`
}

type VectorIndexConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"`
	Backend    string `yaml:"backend"` // "qdrant" | "memory"
}

type S3SSEConfig struct {
	Mode     string `yaml:"mode"` // "" | "sse-s3" | "sse-kms"
	KMSKeyID string `yaml:"kms_key_id"`
}

type S3Config struct {
	Bucket                string      `yaml:"bucket"`
	Region                string      `yaml:"region"`
	Endpoint              string      `yaml:"endpoint"`
	Prefix                string      `yaml:"prefix"`
	AccessKey             string      `yaml:"access_key"`
	SecretKey             string      `yaml:"secret_key"`
	UsePathStyle          bool        `yaml:"use_path_style"`
	TLSInsecureSkipVerify bool        `yaml:"tls_insecure_skip_verify"`
	SSE                   S3SSEConfig `yaml:"sse"`
}

type BlobStoreConfig struct {
	Kind     string `yaml:"kind"` // "local" | "s3"
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	BaseDir  string `yaml:"base_dir"` // local-disk root when Kind == "local"

	S3 S3Config `yaml:"s3"`
}

type ParserConfig struct {
	WhisperModelPath string `yaml:"whisper_model_path"` // enables audio/* transcription when set
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"` // empty disables the answer cache
}

type ClickHouseConfig struct {
	DSN            string `yaml:"dsn"` // empty disables the analytics sink
	EventsTable    string `yaml:"events_table"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"; empty defaults to info
	Path  string `yaml:"path"`  // empty logs to stdout
}

type AuthConfig struct {
	Issuer         string   `yaml:"issuer"` // empty disables OIDC auth entirely
	ClientID       string   `yaml:"client_id"`
	ClientSecret   string   `yaml:"client_secret"`
	RedirectURL    string   `yaml:"redirect_url"`
	CookieName     string   `yaml:"cookie_name"`
	AllowedDomains []string `yaml:"allowed_domains"`
}

type StoreConfig struct {
	URL     string `yaml:"url"`
	Backend string `yaml:"backend"` // "postgres" | "memory"
}

type ObsConfig struct {
	OTLP           string `yaml:"otlp"` // empty disables OTLP tracing/metrics export
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

type Config struct {
	HTTPAddr  string            `yaml:"http_addr"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Chunk     ChunkConfig       `yaml:"chunk"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	Reranker  RerankerConfig    `yaml:"reranker"`
	Generator GeneratorConfig   `yaml:"generator"`
	Broker    BrokerConfig      `yaml:"broker"`
	Vector    VectorIndexConfig `yaml:"vector_index"`
	Blob      BlobStoreConfig   `yaml:"blob_store"`
	Store     StoreConfig       `yaml:"store"`
	Parser    ParserConfig      `yaml:"parser"`
	Cache     CacheConfig       `yaml:"cache"`
	Analytics ClickHouseConfig  `yaml:"analytics"`
	Auth      AuthConfig        `yaml:"auth"`
	Log       LogConfig         `yaml:"log"`
	Obs       ObsConfig         `yaml:"obs"`
}

func defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		Chunk:    ChunkConfig{Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{
			KRecall: 40,
			KFinal:  8,
		},
		Generator: GeneratorConfig{
			Backend:      "openai",
			MaxNewTokens: 512,
			Temperature:  0.2,
			TopP:         0.9,
		},
		Vector: VectorIndexConfig{Backend: "memory", Collection: "chunks", Metric: "cosine"},
		Blob:   BlobStoreConfig{Kind: "local", BaseDir: "./data/blobs"},
		Store:  StoreConfig{Backend: "memory"},
		Obs:    ObsConfig{ServiceName: "ragforge", Environment: "dev"},
	}
}

// Load reads path (if non-empty and present) over the built-in defaults,
// then applies the RAGFORGE_* environment overrides. A missing path is not
// an error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets operators override any recognized key without
// editing the YAML file, the same layering the teacher uses for its own
// env-first configuration.
func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	f := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	strs := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = splitCSV(v)
		}
	}

	str("RAGFORGE_HTTP_ADDR", &cfg.HTTPAddr)

	str("RAGFORGE_EMBEDDING_ENDPOINT", &cfg.Embedding.Endpoint)
	str("RAGFORGE_EMBEDDING_MODEL", &cfg.Embedding.Model)
	i("RAGFORGE_EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	str("RAGFORGE_EMBEDDING_INSTRUCTION", &cfg.Embedding.Instruction)

	i("RAGFORGE_CHUNK_SIZE", &cfg.Chunk.Size)
	i("RAGFORGE_CHUNK_OVERLAP", &cfg.Chunk.Overlap)

	i("RAGFORGE_RETRIEVAL_K_RECALL", &cfg.Retrieval.KRecall)
	i("RAGFORGE_RETRIEVAL_K_FINAL", &cfg.Retrieval.KFinal)

	str("RAGFORGE_RERANKER_ENDPOINT", &cfg.Reranker.Endpoint)
	str("RAGFORGE_RERANKER_MODEL", &cfg.Reranker.Model)
	str("RAGFORGE_RERANKER_INSTRUCTION", &cfg.Reranker.Instruction)

	str("RAGFORGE_GENERATOR_BACKEND", &cfg.Generator.Backend)
	str("RAGFORGE_GENERATOR_ENDPOINT", &cfg.Generator.Endpoint)
	str("RAGFORGE_GENERATOR_API_KEY", &cfg.Generator.APIKey)
	str("RAGFORGE_GENERATOR_MODEL", &cfg.Generator.Model)
	i("RAGFORGE_GENERATOR_MAX_NEW_TOKENS", &cfg.Generator.MaxNewTokens)
	f("RAGFORGE_GENERATOR_TEMPERATURE", &cfg.Generator.Temperature)
	f("RAGFORGE_GENERATOR_TOP_P", &cfg.Generator.TopP)
	strs("RAGFORGE_GENERATOR_STOP", &cfg.Generator.Stop)

	str("RAGFORGE_BROKER_URL", &cfg.Broker.URL)
	str("RAGFORGE_BROKER_TOPIC", &cfg.Broker.Topic)
	str("RAGFORGE_BROKER_GROUP", &cfg.Broker.Group)

	str("RAGFORGE_VECTOR_INDEX_ENDPOINT", &cfg.Vector.Endpoint)
	str("RAGFORGE_VECTOR_INDEX_COLLECTION", &cfg.Vector.Collection)
	str("RAGFORGE_VECTOR_INDEX_METRIC", &cfg.Vector.Metric)
	str("RAGFORGE_VECTOR_INDEX_BACKEND", &cfg.Vector.Backend)

	str("RAGFORGE_BLOB_STORE_KIND", &cfg.Blob.Kind)
	str("RAGFORGE_BLOB_STORE_ENDPOINT", &cfg.Blob.Endpoint)
	str("RAGFORGE_BLOB_STORE_BUCKET", &cfg.Blob.Bucket)
	str("RAGFORGE_BLOB_STORE_REGION", &cfg.Blob.Region)
	str("RAGFORGE_BLOB_STORE_BASE_DIR", &cfg.Blob.BaseDir)

	str("RAGFORGE_STORE_URL", &cfg.Store.URL)
	str("RAGFORGE_STORE_BACKEND", &cfg.Store.Backend)

	str("RAGFORGE_PARSER_WHISPER_MODEL_PATH", &cfg.Parser.WhisperModelPath)

	str("RAGFORGE_CACHE_REDIS_ADDR", &cfg.Cache.RedisAddr)

	str("RAGFORGE_ANALYTICS_DSN", &cfg.Analytics.DSN)
	str("RAGFORGE_ANALYTICS_EVENTS_TABLE", &cfg.Analytics.EventsTable)
	i("RAGFORGE_ANALYTICS_TIMEOUT_SECONDS", &cfg.Analytics.TimeoutSeconds)

	str("RAGFORGE_AUTH_ISSUER", &cfg.Auth.Issuer)
	str("RAGFORGE_AUTH_CLIENT_ID", &cfg.Auth.ClientID)
	str("RAGFORGE_AUTH_CLIENT_SECRET", &cfg.Auth.ClientSecret)
	str("RAGFORGE_AUTH_REDIRECT_URL", &cfg.Auth.RedirectURL)
	str("RAGFORGE_AUTH_COOKIE_NAME", &cfg.Auth.CookieName)
	strs("RAGFORGE_AUTH_ALLOWED_DOMAINS", &cfg.Auth.AllowedDomains)

	str("RAGFORGE_LOG_LEVEL", &cfg.Log.Level)
	str("RAGFORGE_LOG_PATH", &cfg.Log.Path)

	str("RAGFORGE_OBS_OTLP", &cfg.Obs.OTLP)
	str("RAGFORGE_OBS_SERVICE_NAME", &cfg.Obs.ServiceName)
	str("RAGFORGE_OBS_SERVICE_VERSION", &cfg.Obs.ServiceVersion)
	str("RAGFORGE_OBS_ENVIRONMENT", &cfg.Obs.Environment)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
