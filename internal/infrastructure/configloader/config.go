// Package configloader 负责加载、覆盖与校验服务的运行时配置。
package configloader

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 是配置文件的根结构，由 Kratos config 扫描得到。
type Bootstrap struct {
	Server    Server    `json:"server"`
	Data      Data      `json:"data"`
	Storage   Storage   `json:"storage"`
	Auth      Auth      `json:"auth"`
	Video     Video     `json:"video"`
	Reaper    Reaper    `json:"reaper"`
	Messaging Messaging `json:"messaging"`
	Log       Log       `json:"log"`
}

// Server 聚合 HTTP 监听与 Handler 超时配置。
type Server struct {
	HTTP     HTTP     `json:"http"`
	Handlers Handlers `json:"handlers"`
}

// HTTP 描述 HTTP 服务器监听参数。
type HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Handlers 描述不同类型 Handler 的超时策略。
type Handlers struct {
	DefaultTimeout Duration `json:"default_timeout"`
	CommandTimeout Duration `json:"command_timeout"`
	QueryTimeout   Duration `json:"query_timeout"`
}

// Data 聚合数据层配置。
type Data struct {
	Postgres Postgres `json:"postgres"`
}

// Postgres 描述 pgxpool 连接池参数。
type Postgres struct {
	DSN                      string   `json:"dsn"`
	MaxConns                 int32    `json:"max_conns"`
	MinConns                 int32    `json:"min_conns"`
	MaxConnLifetime          Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime          Duration `json:"max_conn_idle_time"`
	HealthCheckPeriod        Duration `json:"health_check_period"`
	Schema                   string   `json:"schema"`
	EnablePreparedStatements bool     `json:"enable_prepared_statements"`
}

// Storage 描述对象存储（GCS）配置。
type Storage struct {
	Bucket               string   `json:"bucket"`
	SignerServiceAccount string   `json:"signer_service_account"`
	CredentialsFile      string   `json:"credentials_file"`
	UploadURLTTL         Duration `json:"upload_url_ttl"`
	PartURLTTL           Duration `json:"part_url_ttl"`
}

// Auth 描述管理员身份与令牌签发配置。
type Auth struct {
	AdminEmail        string   `json:"admin_email"`
	AdminPasswordHash string   `json:"admin_password_hash"`
	JWTSecret         string   `json:"jwt_secret"`
	TokenTTL          Duration `json:"token_ttl"`
	Issuer            string   `json:"issuer"`
}

// Video 描述视频生命周期策略。
type Video struct {
	ExpiryHours              int      `json:"expiry_hours"`
	DownloadURLExpiryMinutes int      `json:"download_url_expiry_minutes"`
	MaxFileSizeGB            int64    `json:"max_file_size_gb"`
	MultipartThresholdMB     int64    `json:"multipart_threshold_mb"`
	MultipartPartSizeMB      int64    `json:"multipart_part_size_mb"`
	ConfirmAttempts          int      `json:"confirm_attempts"`
	ConfirmBackoff           Duration `json:"confirm_backoff"`
}

// Expiry 返回记录的生存期。
func (v Video) Expiry() time.Duration {
	return time.Duration(v.ExpiryHours) * time.Hour
}

// DownloadURLTTL 返回下载签名 URL 的有效期。
func (v Video) DownloadURLTTL() time.Duration {
	return time.Duration(v.DownloadURLExpiryMinutes) * time.Minute
}

// MaxFileSize 以字节为单位返回允许的最大文件大小。
func (v Video) MaxFileSize() int64 {
	return v.MaxFileSizeGB << 30
}

// MultipartThreshold 以字节为单位返回分片上传阈值。
func (v Video) MultipartThreshold() int64 {
	return v.MultipartThresholdMB << 20
}

// MultipartPartSize 以字节为单位返回建议的分片大小。
func (v Video) MultipartPartSize() int64 {
	return v.MultipartPartSizeMB << 20
}

// Reaper 描述过期清理任务的调度参数。
type Reaper struct {
	Schedule    string   `json:"schedule"`
	BatchSize   int      `json:"batch_size"`
	Concurrency int      `json:"concurrency"`
	RunTimeout  Duration `json:"run_timeout"`
	Embedded    bool     `json:"embedded"`
}

// Messaging 聚合消息订阅配置。
type Messaging struct {
	PubSub PubSub `json:"pubsub"`
}

// PubSub 描述 GCS 上传通知的订阅参数。
type PubSub struct {
	ProjectID        string `json:"project_id"`
	SubscriptionID   string `json:"subscription_id"`
	EmulatorEndpoint string `json:"emulator_endpoint"`
	MaxOutstanding   int    `json:"max_outstanding"`
}

// Enabled 判断订阅是否已配置。
func (p PubSub) Enabled() bool {
	return p.ProjectID != "" && p.SubscriptionID != ""
}

// Log 描述日志级别。
type Log struct {
	Level string `json:"level"`
}

// Duration 支持 "1s"/"10m" 字符串或纳秒整数两种写法。
type Duration time.Duration

// Std 转换为 time.Duration。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON 输出可读的时长字符串。
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON 解析字符串或数值形式的时长。
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		if v == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration type %T", raw)
	}
	return nil
}
