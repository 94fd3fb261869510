package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		dotenv    string
		wantErr   bool
		wantURL   string
		wantLevel string
		wantTO    time.Duration
	}{
		{
			name:      "正常系: 設定ファイルなしでデフォルト値",
			wantURL:   DefaultAPIBaseURL,
			wantLevel: DefaultLogLevel,
			wantTO:    DefaultAPITimeout,
		},
		{
			name: "正常系: config.yaml の値を使う",
			yaml: `
api:
  base_url: "https://cards.example.com"
  timeout: 5s
log:
  level: debug
`,
			wantURL:   "https://cards.example.com",
			wantLevel: "debug",
			wantTO:    5 * time.Second,
		},
		{
			name:      "正常系: .env の API_URL が反映される",
			dotenv:    "API_URL=http://api.internal:9000\n",
			wantURL:   "http://api.internal:9000",
			wantLevel: DefaultLogLevel,
			wantTO:    DefaultAPITimeout,
		},
		{
			name: "異常系: base_url がURLではない",
			yaml: `
api:
  base_url: "not a url"
`,
			wantErr: true,
		},
		{
			name: "異常系: 未知のログレベル",
			yaml: `
log:
  level: verbose
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)
			t.Setenv("HOME", dir)
			t.Setenv("API_URL", "")
			os.Unsetenv("API_URL")
			Cfg = Config{}

			if tt.yaml != "" {
				writeFile(t, dir, "config.yaml", tt.yaml)
			}
			if tt.dotenv != "" {
				writeFile(t, dir, ".env", tt.dotenv)
				t.Cleanup(func() { os.Unsetenv("API_URL") })
			}

			err := LoadConfig(dir)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, Cfg.API.BaseURL)
			assert.Equal(t, tt.wantLevel, Cfg.Log.Level)
			assert.Equal(t, tt.wantTO, Cfg.API.Timeout)
			assert.Equal(t, DefaultAudioChunkSize, Cfg.Audio.ChunkSize)
		})
	}
}
