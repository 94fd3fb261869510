// internal/config/config.go
package config

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type AudioConfig struct {
	// 録音に使う外部コマンド (例: arecord, ffmpeg)。標準出力に音声を書き出すこと。
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	ChunkSize int      `mapstructure:"chunk_size" validate:"gt=0"`
	MimeType  string   `mapstructure:"mime_type"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Log     LogConfig     `mapstructure:"log"`
}

var Cfg Config

// LoadConfig は .env → config.yaml → 環境変数の順に読み込み、Cfg に格納します。
func LoadConfig(path string) error {
	// .env は任意。存在しなければ無視する
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %s\n", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %s\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".voicecards"))
	}

	v.SetEnvPrefix("APP") // 例: APP_API_BASE_URL
	v.AutomaticEnv()
	v.BindEnv("api.base_url", "APP_API_BASE_URL", "API_URL")
	v.BindEnv("storage.path", "APP_STORAGE_PATH")
	v.BindEnv("log.level", "APP_LOG_LEVEL", "LOG_LEVEL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %s\n", err)
		return err
	}

	Cfg = cfg

	log.Println("Config loaded successfully")
	log.Printf("API Base URL: %s", Cfg.API.BaseURL)
	log.Printf("Storage Path: %s", Cfg.Storage.Path)

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("audio.command", DefaultAudioCommand)
	v.SetDefault("audio.args", DefaultAudioArgs)
	v.SetDefault("audio.chunk_size", DefaultAudioChunkSize)
	v.SetDefault("audio.mime_type", DefaultAudioMimeType)
	v.SetDefault("log.level", DefaultLogLevel)
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultStorageFile
	}
	return filepath.Join(home, ".voicecards", DefaultStorageFile)
}
