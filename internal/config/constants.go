// internal/config/constants.go
package config

import "time"

// アプリケーション情報
const (
	AppName    = "voicecards"
	AppVersion = "0.3.0"
)

// デフォルト設定値
const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultAPITimeout     = 30 * time.Second
	DefaultStorageFile    = "voicecards.db"
	DefaultAudioCommand   = "arecord"
	DefaultAudioChunkSize = 4096
	DefaultAudioMimeType  = "audio/wav"
	DefaultLogLevel       = "info"
)

// arecord でCD品質のWAVを標準出力へ書き出す
var DefaultAudioArgs = []string{"-q", "-f", "cd", "-t", "wav", "-"}
