package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig
	SQLite         SQLiteConfig
	Neo4j          Neo4jConfig
	Redis          RedisConfig
	LLM            LLMConfig
	Gazetteer      GazetteerConfig
	Extraction     ExtractionConfig
	Classification ClassificationConfig
	Input          InputConfig
	Output         OutputConfig
	Ontology       OntologyConfig
	Logging        LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
	BatchLimit   int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Enabled           bool
	BaseURL           string
	Model             string
	APIKey            string
	Temperature       float32
	MaxTokens         int
	TimeoutSec        int
	MaxWorkers        int
	ChunkSize         int
	Retries           int
	RequestsPerSecond float64
	CacheTTLMinutes   int
}

type GazetteerConfig struct {
	Dir          string
	MasterFile   string
	VariantsFile string
	FormsFile    string
	LegacyPath   string
	UseIndex     bool
	CacheSize    int
}

type ExtractionConfig struct {
	MaxLocationTokens int
	MinTokenLength    int
	Workers           int
}

type ClassificationConfig struct {
	Mode string
}

type InputConfig struct {
	Path        string
	IDColumn    string
	NoteColumns []string
	Limit       int
}

type OutputConfig struct {
	Dir string
}

type OntologyConfig struct {
	BaseNamespace  string
	HMNamespace    string
	CRMNamespace   string
	LRMooNamespace string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	ErrMissingAPIKey = errors.New("llm.apiKey is required when the AI classifier is enabled")
	ErrInvalidMode   = errors.New("classification.mode must be hybrid or ai")
)

func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads the given file, or searches the default locations when path is empty.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hms-extractor")
	}

	v.SetEnvPrefix("HMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GROK_SECRET")
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.LLM.MaxWorkers <= 0 || c.LLM.ChunkSize <= 0 || c.LLM.Retries <= 0 {
		return fmt.Errorf("llm workers, chunk size and retries must be positive")
	}
	if c.Extraction.MaxLocationTokens < 1 || c.Extraction.MinTokenLength < 1 {
		return fmt.Errorf("extraction token limits must be positive")
	}
	switch c.Classification.Mode {
	case "hybrid", "ai":
	default:
		return ErrInvalidMode
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.rateLimit", 60)
	v.SetDefault("server.batchLimit", 500)

	v.SetDefault("sqlite.enabled", true)
	v.SetDefault("sqlite.path", "./data/manuscripts.db")

	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.baseURL", "https://api.x.ai/v1")
	v.SetDefault("llm.model", "grok-4-fast-non-reasoning")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.maxTokens", 1024)
	v.SetDefault("llm.timeoutSec", 35)
	v.SetDefault("llm.maxWorkers", 8)
	v.SetDefault("llm.chunkSize", 8)
	v.SetDefault("llm.retries", 3)
	v.SetDefault("llm.requestsPerSecond", 4.0)
	v.SetDefault("llm.cacheTTLMinutes", 1440)

	v.SetDefault("gazetteer.dir", "./data/kima")
	v.SetDefault("gazetteer.masterFile", "20251015 Kima places.tsv")
	v.SetDefault("gazetteer.variantsFile", "Kima-Hebrew-Variants-20250929.tsv")
	v.SetDefault("gazetteer.formsFile", "Maagarim-Zurot-&-Arachim.tsv")
	v.SetDefault("gazetteer.legacyPath", "./data/gazetteer.csv")
	v.SetDefault("gazetteer.useIndex", true)
	v.SetDefault("gazetteer.cacheSize", 10000)

	v.SetDefault("extraction.maxLocationTokens", 6)
	v.SetDefault("extraction.minTokenLength", 2)
	v.SetDefault("extraction.workers", 4)

	v.SetDefault("classification.mode", "hybrid")

	v.SetDefault("input.idColumn", "001")
	v.SetDefault("input.noteColumns", []string{
		"957$a", "500$a", "561$a", "518$a", "561$3", "544$a", "541$a",
		"245$a", "245$c", "260$a", "264$a", "651$a", "751$a", "700$e", "710$e",
	})

	v.SetDefault("output.dir", "./output")

	v.SetDefault("ontology.baseNamespace", "http://data.hebrewmanuscripts.org/")
	v.SetDefault("ontology.hmNamespace", "http://www.ontology.org.il/HebrewManuscripts/2025-08-19#")
	v.SetDefault("ontology.crmNamespace", "http://www.cidoc-crm.org/cidoc-crm/")
	v.SetDefault("ontology.lrmooNamespace", "http://iflastandards.info/ns/lrm/lrmoo/")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.maxSizeMB", 100)
	v.SetDefault("logging.maxBackups", 5)
	v.SetDefault("logging.maxAgeDays", 30)
}
