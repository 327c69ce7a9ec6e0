package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Comment       CommentConfig       `mapstructure:"comment"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Mode    string `mapstructure:"mode"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
}

// DSN 返回PostgreSQL连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr 返回Redis地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint  string   `mapstructure:"endpoint"`
	AccessKey string   `mapstructure:"access_key"`
	SecretKey string   `mapstructure:"secret_key"`
	UseSSL    bool     `mapstructure:"use_ssl"`
	Buckets   []string `mapstructure:"buckets"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// Topic 返回指定逻辑名的 topic，未配置时使用逻辑名本身
func (k *KafkaConfig) Topic(name string) string {
	if t, ok := k.Topics[name]; ok && t != "" {
		return t
	}
	return name
}

// ElasticsearchConfig Elasticsearch配置
type ElasticsearchConfig struct {
	Hosts []string          `mapstructure:"hosts"`
	Index map[string]string `mapstructure:"index"`
}

// IndexName 返回索引名，未配置时回退到默认值
func (e *ElasticsearchConfig) IndexName(name string) string {
	if idx, ok := e.Index[name]; ok && idx != "" {
		return idx
	}
	return name
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// ExpireDuration 返回过期时间
func (j *JWTConfig) ExpireDuration() time.Duration {
	return time.Duration(j.ExpireHours) * time.Hour
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// CommentConfig 评论模块配置
type CommentConfig struct {
	MaxContentLength int     `mapstructure:"max_content_length"`
	StrictParent     bool    `mapstructure:"strict_parent"`  // 回复时校验父评论存在且属于同一目标
	LikeLockTTL      int     `mapstructure:"like_lock_ttl"`  // 秒
	LikeLockWait     int     `mapstructure:"like_lock_wait"` // 毫秒
	AvatarBucket     string  `mapstructure:"avatar_bucket"`
	AvatarURLExpiry  int     `mapstructure:"avatar_url_expiry"` // 分钟
	WriteRPS         float64 `mapstructure:"write_rps"`         // 单用户写操作速率，<=0 不限流
	WriteBurst       int     `mapstructure:"write_burst"`
}

// LockTTL 返回点赞锁的过期时间
func (c *CommentConfig) LockTTL() time.Duration {
	return time.Duration(c.LikeLockTTL) * time.Second
}

// LockWait 返回获取点赞锁的最长等待时间
func (c *CommentConfig) LockWait() time.Duration {
	return time.Duration(c.LikeLockWait) * time.Millisecond
}

// AvatarExpiry 返回头像预签名 URL 有效期
func (c *CommentConfig) AvatarExpiry() time.Duration {
	return time.Duration(c.AvatarURLExpiry) * time.Minute
}

// DefaultCommentConfig 评论模块默认配置
func DefaultCommentConfig() CommentConfig {
	return CommentConfig{
		MaxContentLength: 500,
		StrictParent:     true,
		LikeLockTTL:      5,
		LikeLockWait:     2000,
		AvatarBucket:     "avatars",
		AvatarURLExpiry:  60,
		WriteRPS:         0,
		WriteBurst:       10,
	}
}

// 全局配置实例
var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// 环境变量覆盖，例如 MELODIA_DATABASE_HOST
	v.SetEnvPrefix("MELODIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultCommentConfig()
	v.SetDefault("app.name", "melodia-go")
	v.SetDefault("app.mode", "debug")
	v.SetDefault("app.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("comment.max_content_length", d.MaxContentLength)
	v.SetDefault("comment.strict_parent", d.StrictParent)
	v.SetDefault("comment.like_lock_ttl", d.LikeLockTTL)
	v.SetDefault("comment.like_lock_wait", d.LikeLockWait)
	v.SetDefault("comment.avatar_bucket", d.AvatarBucket)
	v.SetDefault("comment.avatar_url_expiry", d.AvatarURLExpiry)
	v.SetDefault("comment.write_rps", d.WriteRPS)
	v.SetDefault("comment.write_burst", d.WriteBurst)
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded, please call Load() first")
	}
	return globalConfig
}

// GetApp 获取应用配置
func GetApp() *AppConfig {
	return &Get().App
}

// GetJWT 获取JWT配置
func GetJWT() *JWTConfig {
	return &Get().JWT
}
