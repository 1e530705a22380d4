package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数のプレフィックス
const EnvPrefix = "HAKOBIYA"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Admin  AdminConfig  `mapstructure:"admin" yaml:"admin"`
}

// ServerConfig は静的ファイルサーバーの設定
type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`                                 // リッスンするホスト
	Port    int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`      // リッスンするポート番号 (0はエフェメラル)
	Root    string `mapstructure:"root" yaml:"root" validate:"required"`             // ドキュメントルート
	Workers int    `mapstructure:"workers" yaml:"workers" validate:"gte=1,lte=1024"` // ワーカー数
	Backlog int    `mapstructure:"backlog" yaml:"backlog" validate:"gte=1"`          // listenのバックログ

	// リクエスト受信の設定
	ChunkSize      int `mapstructure:"chunk_size" yaml:"chunk_size" validate:"gte=1"`             // 1回の読み込みサイズ
	MaxRequestSize int `mapstructure:"max_request_size" yaml:"max_request_size" validate:"gte=4"` // ヘッダーブロックの最大サイズ

	// タイムアウト設定 (0はOSのデフォルト)
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"` // ログレベル
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=auto text json"`      // 出力形式
	File   string `mapstructure:"file" yaml:"file"`                                          // 出力先ファイル (空は標準エラー出力)
}

// AdminConfig は管理用APIの設定
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
}

// LoadOptions は設定読み込み時の追加入力
type LoadOptions struct {
	// ConfigFile は設定ファイルのパス (YAML/TOML/JSON)。空なら読み込まない
	ConfigFile string

	// Flags はコマンドラインフラグ。変更されたフラグは他の全ての値より優先される
	Flags *pflag.FlagSet
}

// flagKeys はフラグ名と設定キーの対応
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"root":       "server.root",
	"workers":    "server.workers",
	"backlog":    "server.backlog",
	"log-file":   "log.file",
	"log-format": "log.format",
	"admin":      "admin.enabled",
	"admin-addr": "admin.addr",
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Root:           "www",
			Workers:        1,
			Backlog:        5,
			ChunkSize:      1024,
			MaxRequestSize: 8192,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8081",
		},
	}
}

// Load は設定を読み込む
// 優先順位: 変更されたフラグ > 環境変数 > 設定ファイル > デフォルト値
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PaaS向けに素のPORTも受け付ける
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("環境変数のバインドに失敗: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("フラグ %s のバインドに失敗: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗: %w", err)
	}

	// --debug はログレベルの指定より優先する
	if opts.Flags != nil {
		if debug, err := opts.Flags.GetBool("debug"); err == nil && debug {
			cfg.Log.Level = "debug"
		}
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.root", d.Server.Root)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.backlog", d.Server.Backlog)
	v.SetDefault("server.chunk_size", d.Server.ChunkSize)
	v.SetDefault("server.max_request_size", d.Server.MaxRequestSize)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("admin.enabled", d.Admin.Enabled)
	v.SetDefault("admin.addr", d.Admin.Addr)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("無効な値 %s=%v (%s): %w", fe.Namespace(), fe.Value(), fe.Tag(), err)
		}
		return err
	}
	if c.Server.MaxRequestSize < c.Server.ChunkSize {
		return fmt.Errorf("max_request_size (%d) は chunk_size (%d) 以上である必要があります",
			c.Server.MaxRequestSize, c.Server.ChunkSize)
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// WriteYAML は有効な設定をYAMLとして書き出す
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("設定のエンコードに失敗: %w", err)
	}
	return enc.Close()
}
