package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Media     MediaConfig
	Speech    SpeechConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	SubmitPerHour int
}

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	Driver          string // "s3" or "minio"
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	UseSSL          bool
}

// MediaConfig holds binary paths and audio pipeline constants.
type MediaConfig struct {
	YtDlpPath          string
	FFmpegPath         string
	CookiesFile        string
	WorkDir            string
	MaxDurationSeconds float64
	SilenceGapSeconds  float64
	TargetPeakDb       float64
	SampleRate         int
	Channels           int
	Bitrate            string
}

// SpeechConfig selects the speech engine.
type SpeechConfig struct {
	Engine  string // "http" or "command"
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	Command string
	Timeout int // seconds
}

type WorkerConfig struct {
	Concurrency int
	Queue       string
	MaxRetry    int
	Timeout     time.Duration
}

func Load() (*Config, error) {
	// Local overrides; variables already set in the environment win
	if err := godotenv.Load(".env.local"); err == nil {
		log.Println("Loaded environment from .env.local")
	}

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("SPEECH_API_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.region", "STORAGE_REGION")
	_ = v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.bucket_name", "STORAGE_BUCKET")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	_ = v.BindEnv("media.yt_dlp_path", "YT_DLP_BIN")
	_ = v.BindEnv("media.ffmpeg_path", "FFMPEG_BIN")
	_ = v.BindEnv("media.cookies_file", "COOKIES_FILE")
	_ = v.BindEnv("media.work_dir", "MEDIA_WORK_DIR")
	_ = v.BindEnv("media.max_duration_seconds", "MAX_SONG_DURATION_SECONDS")
	_ = v.BindEnv("media.silence_gap_seconds", "SILENCE_GAP_SECONDS")
	_ = v.BindEnv("speech.engine", "SPEECH_ENGINE")
	_ = v.BindEnv("speech.base_url", "SPEECH_BASE_URL")
	_ = v.BindEnv("speech.api_key", "SPEECH_API_KEY")
	_ = v.BindEnv("speech.model", "SPEECH_MODEL")
	_ = v.BindEnv("speech.voice", "SPEECH_VOICE")
	_ = v.BindEnv("speech.command", "SPEECH_COMMAND")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.queue", "WORKER_QUEUE")
	_ = v.BindEnv("worker.max_retry", "WORKER_MAX_RETRY")
	_ = v.BindEnv("worker.timeout", "WORKER_TIMEOUT")

	setDefaults(v)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("ratelimit.submit_per_hour", 10)

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("media.yt_dlp_path", "yt-dlp")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.work_dir", os.TempDir())
	v.SetDefault("media.max_duration_seconds", 600)
	v.SetDefault("media.silence_gap_seconds", 1.0)
	v.SetDefault("media.target_peak_db", -0.5)
	v.SetDefault("media.sample_rate", 44100)
	v.SetDefault("media.channels", 2)
	v.SetDefault("media.bitrate", "192k")

	v.SetDefault("speech.engine", "http")
	v.SetDefault("speech.base_url", "https://api.openai.com/v1")
	v.SetDefault("speech.model", "tts-1")
	v.SetDefault("speech.voice", "alloy")
	v.SetDefault("speech.command", "espeak-ng")
	v.SetDefault("speech.timeout", 60)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue", "media")
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.timeout", "15m")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: v.GetInt("ratelimit.submit_per_hour"),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(v.GetString("storage.driver")),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			BucketName:      v.GetString("storage.bucket_name"),
			PublicURL:       v.GetString("storage.public_url"),
			UseSSL:          v.GetBool("storage.use_ssl"),
		},
		Media: MediaConfig{
			YtDlpPath:          v.GetString("media.yt_dlp_path"),
			FFmpegPath:         v.GetString("media.ffmpeg_path"),
			CookiesFile:        v.GetString("media.cookies_file"),
			WorkDir:            v.GetString("media.work_dir"),
			MaxDurationSeconds: v.GetFloat64("media.max_duration_seconds"),
			SilenceGapSeconds:  v.GetFloat64("media.silence_gap_seconds"),
			TargetPeakDb:       v.GetFloat64("media.target_peak_db"),
			SampleRate:         v.GetInt("media.sample_rate"),
			Channels:           v.GetInt("media.channels"),
			Bitrate:            v.GetString("media.bitrate"),
		},
		Speech: SpeechConfig{
			Engine:  strings.ToLower(v.GetString("speech.engine")),
			BaseURL: v.GetString("speech.base_url"),
			APIKey:  v.GetString("speech.api_key"),
			Model:   v.GetString("speech.model"),
			Voice:   v.GetString("speech.voice"),
			Command: v.GetString("speech.command"),
			Timeout: v.GetInt("speech.timeout"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
			Queue:       v.GetString("worker.queue"),
			MaxRetry:    v.GetInt("worker.max_retry"),
			Timeout:     v.GetDuration("worker.timeout"),
		},
	}
}
