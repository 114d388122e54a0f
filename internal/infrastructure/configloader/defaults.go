package configloader

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// defaultConfPath is the fallback configuration directory when no overrides are provided.
	defaultConfPath       = "configs"
	defaultServiceName    = "video-share-service"
	defaultServiceVersion = "dev"
	defaultEnvironment    = "development"

	defaultHTTPAddr       = "0.0.0.0:8080"
	defaultHTTPTimeout    = 30 * time.Second
	defaultHandlerTimeout = 5 * time.Second
	// 需覆盖 ConfirmUpload 的重试窗口（attempts*backoff）。
	defaultCommandTimeout = 15 * time.Second
	defaultQueryTimeout   = 3 * time.Second

	defaultUploadURLTTL = time.Hour
	defaultPartURLTTL   = time.Hour

	defaultTokenTTL = 24 * time.Hour
	defaultIssuer   = "video-share-service"

	defaultExpiryHours          = 15
	defaultDownloadURLMinutes   = 10
	defaultMaxFileSizeGB        = 20
	defaultMultipartThresholdMB = 100
	defaultMultipartPartSizeMB  = 100
	defaultConfirmAttempts      = 5
	defaultConfirmBackoff       = time.Second

	defaultReaperSchedule    = "@hourly"
	defaultReaperConcurrency = 4
	defaultReaperRunTimeout  = 10 * time.Minute

	defaultPubSubMaxOutstanding = 16
	defaultLogLevel             = "info"
)

// applyDefaults 为缺省字段填充默认值。
func applyDefaults(bc *Bootstrap) {
	if bc == nil {
		return
	}
	setDefaultString(&bc.Server.HTTP.Addr, defaultHTTPAddr)
	setDefaultDuration(&bc.Server.HTTP.Timeout, defaultHTTPTimeout)
	setDefaultDuration(&bc.Server.Handlers.DefaultTimeout, defaultHandlerTimeout)
	setDefaultDuration(&bc.Server.Handlers.CommandTimeout, defaultCommandTimeout)
	setDefaultDuration(&bc.Server.Handlers.QueryTimeout, defaultQueryTimeout)

	setDefaultDuration(&bc.Storage.UploadURLTTL, defaultUploadURLTTL)
	setDefaultDuration(&bc.Storage.PartURLTTL, defaultPartURLTTL)

	setDefaultDuration(&bc.Auth.TokenTTL, defaultTokenTTL)
	setDefaultString(&bc.Auth.Issuer, defaultIssuer)

	setDefaultInt(&bc.Video.ExpiryHours, defaultExpiryHours)
	setDefaultInt(&bc.Video.DownloadURLExpiryMinutes, defaultDownloadURLMinutes)
	setDefaultInt64(&bc.Video.MaxFileSizeGB, defaultMaxFileSizeGB)
	setDefaultInt64(&bc.Video.MultipartThresholdMB, defaultMultipartThresholdMB)
	setDefaultInt64(&bc.Video.MultipartPartSizeMB, defaultMultipartPartSizeMB)
	setDefaultInt(&bc.Video.ConfirmAttempts, defaultConfirmAttempts)
	setDefaultDuration(&bc.Video.ConfirmBackoff, defaultConfirmBackoff)

	setDefaultString(&bc.Reaper.Schedule, defaultReaperSchedule)
	setDefaultInt(&bc.Reaper.Concurrency, defaultReaperConcurrency)
	setDefaultDuration(&bc.Reaper.RunTimeout, defaultReaperRunTimeout)

	setDefaultInt(&bc.Messaging.PubSub.MaxOutstanding, defaultPubSubMaxOutstanding)
	setDefaultString(&bc.Log.Level, defaultLogLevel)
}

// Validate 校验加载后的配置是否满足运行要求。
func (bc *Bootstrap) Validate() error {
	if bc == nil {
		return errors.New("bootstrap is nil")
	}
	var errs []error
	require := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	require(strings.TrimSpace(bc.Data.Postgres.DSN) != "", "data.postgres.dsn is required (set DATABASE_URL)")
	require(strings.TrimSpace(bc.Storage.Bucket) != "", "storage.bucket is required (set GCS_BUCKET)")
	require(strings.TrimSpace(bc.Auth.AdminEmail) != "", "auth.admin_email is required (set ADMIN_EMAIL)")
	require(strings.TrimSpace(bc.Auth.AdminPasswordHash) != "", "auth.admin_password_hash is required (set ADMIN_PASSWORD_HASH)")
	require(len(bc.Auth.JWTSecret) >= 16, "auth.jwt_secret must be at least 16 bytes (set JWT_SECRET)")
	require(bc.Video.ExpiryHours > 0, "video.expiry_hours must be positive")
	require(bc.Video.DownloadURLExpiryMinutes > 0, "video.download_url_expiry_minutes must be positive")
	require(bc.Video.MaxFileSizeGB > 0, "video.max_file_size_gb must be positive")
	require(bc.Video.MultipartThresholdMB > 0, "video.multipart_threshold_mb must be positive")
	require(bc.Video.MultipartPartSizeMB >= 5, "video.multipart_part_size_mb must be at least 5")
	require(bc.Video.ConfirmAttempts > 0, "video.confirm_attempts must be positive")
	require(bc.Reaper.BatchSize >= 0, "reaper.batch_size must be non-negative")
	require(bc.Reaper.Concurrency > 0, "reaper.concurrency must be positive")
	switch strings.ToLower(bc.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug/info/warn/error", bc.Log.Level))
	}
	return errors.Join(errs...)
}

func setDefaultString(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = value
	}
}

func setDefaultInt(dst *int, value int) {
	if *dst == 0 {
		*dst = value
	}
}

func setDefaultInt64(dst *int64, value int64) {
	if *dst == 0 {
		*dst = value
	}
}

func setDefaultDuration(dst *Duration, value time.Duration) {
	if *dst == 0 {
		*dst = Duration(value)
	}
}
