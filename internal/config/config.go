package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"jarvis/internal/fault"
)

const EnvPrefix = "JARVIS"

type Config struct {
	LogLevel  string          `mapstructure:"log"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vision    VisionConfig    `mapstructure:"vision"`
	STT       STTConfig       `mapstructure:"stt"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Intent    IntentConfig    `mapstructure:"intent"`
	Convo     ConvoConfig     `mapstructure:"convo"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"`
	Proxy     string          `mapstructure:"proxy"`
	BusURL    string          `mapstructure:"bus"`
	Socket    string          `mapstructure:"socket"`
	BeepPath  string          `mapstructure:"beep"`
}

type AssistantConfig struct {
	Name           string `mapstructure:"name"`
	UserName       string `mapstructure:"user_name"`
	SpeakFallbacks bool   `mapstructure:"speak_fallbacks"`
}

type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type VisionConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"top_p"`
	TopK            float32 `mapstructure:"top_k"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
}

type STTConfig struct {
	Backend   string `mapstructure:"backend"` // "whisper" or "openai"
	ModelPath string `mapstructure:"model_path"`
	Language  string `mapstructure:"language"`
	APIKey    string `mapstructure:"api_key"`
	Replay    string `mapstructure:"replay"` // directory or file of recorded utterances
}

type TTSConfig struct {
	Voice      string  `mapstructure:"voice"`
	DuckFactor float64 `mapstructure:"duck_factor"`
	DuckMin    int     `mapstructure:"duck_min"`
}

type CaptureConfig struct {
	Dir         string `mapstructure:"dir"`
	JPEGQuality int    `mapstructure:"jpeg_quality"`
	MaxEdge     int    `mapstructure:"max_edge"`
	Camera      int    `mapstructure:"camera"`
}

type IntentConfig struct {
	Retries int           `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

type ConvoConfig struct {
	Window int `mapstructure:"window"`
}

type TimeoutConfig struct {
	LLM    time.Duration `mapstructure:"llm"`
	Vision time.Duration `mapstructure:"vision"`
	STT    time.Duration `mapstructure:"stt"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log", "info")

	v.SetDefault("assistant.name", "Jarvis")
	v.SetDefault("assistant.user_name", "")
	v.SetDefault("assistant.speak_fallbacks", true)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama3-70b-8192")

	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gemini-1.5-flash-latest")
	v.SetDefault("vision.temperature", 0.7)
	v.SetDefault("vision.top_p", 1.0)
	v.SetDefault("vision.top_k", 1.0)
	v.SetDefault("vision.max_output_tokens", 2048)

	v.SetDefault("stt.backend", "whisper")
	v.SetDefault("stt.model_path", "third_party/whisper.cpp/models/ggml-medium.bin")
	v.SetDefault("stt.language", "auto")
	v.SetDefault("stt.api_key", "")
	v.SetDefault("stt.replay", "")

	v.SetDefault("tts.voice", "en")
	v.SetDefault("tts.duck_factor", 0.3)
	v.SetDefault("tts.duck_min", 10)

	v.SetDefault("capture.dir", ".")
	v.SetDefault("capture.jpeg_quality", 15)
	v.SetDefault("capture.max_edge", 1920)
	v.SetDefault("capture.camera", 0)

	v.SetDefault("intent.retries", 1)
	v.SetDefault("intent.backoff", 250*time.Millisecond)

	v.SetDefault("convo.window", 0)

	v.SetDefault("timeouts.llm", 60*time.Second)
	v.SetDefault("timeouts.vision", 90*time.Second)
	v.SetDefault("timeouts.stt", 60*time.Second)

	v.SetDefault("proxy", "")
	v.SetDefault("bus", "")
	v.SetDefault("socket", "/tmp/jarvis.sock")
	v.SetDefault("beep", "beep.mp3")
}

// Flags registers the command line surface. Flag names match config keys so
// they can be bound into viper directly.
func Flags(name string) *cli.FlagSet {
	fs := cli.NewFlagSet(name, cli.ContinueOnError)
	fs.StringP("env", "e", ".env", "Env file path")
	fs.StringP("config", "c", "", "Config file path (yaml/json/toml)")
	fs.StringP("log", "l", "info", "Log level")
	fs.StringP("proxy", "p", "", "Socks Proxy Address")
	fs.StringP("bus", "b", "", "Websocket url to publish turns to")
	fs.String("socket", "/tmp/jarvis.sock", "Control socket path")
	fs.String("stt.backend", "whisper", "Speech recognition backend: whisper|openai")
	fs.String("stt.replay", "", "Replay audio files instead of the microphone")
	return fs
}

// Load merges defaults, config file, .env, environment and flags (in rising
// priority) into a Config.
func Load(fs *cli.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if fs != nil {
		if envFile, _ := fs.GetString("env"); envFile != "" {
			// a missing .env file is fine, the environment may already be set
			_ = godotenv.Load(envFile)
		}
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.LLM.APIKey = firstNonEmpty(cfg.LLM.APIKey, os.Getenv("LLM_API_KEY"), os.Getenv("GROQ_API_KEY"), os.Getenv("groq_api"))
	cfg.Vision.APIKey = firstNonEmpty(cfg.Vision.APIKey, os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"), os.Getenv("google_api"))
	cfg.STT.APIKey = firstNonEmpty(cfg.STT.APIKey, os.Getenv("OPENAI_API_KEY"))

	return &cfg, nil
}

// Validate fails fast when a credential needed at runtime is absent.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Vision.APIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if c.STT.Backend == "openai" && c.STT.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", fault.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.STT.Backend {
	case "whisper", "openai":
	default:
		return fmt.Errorf("unknown stt backend %q", c.STT.Backend)
	}

	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality out of range: %d", c.Capture.JPEGQuality)
	}

	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
