package configloader

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const (
	envConfPath       = "CONF_PATH"
	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envAppEnv         = "APP_ENV"

	envDatabaseURL          = "DATABASE_URL"
	envPort                 = "PORT"
	envBucket               = "GCS_BUCKET"
	envCredentials          = "GOOGLE_APPLICATION_CREDENTIALS"
	envAdminEmail           = "ADMIN_EMAIL"
	envAdminPasswordHash    = "ADMIN_PASSWORD_HASH"
	envJWTSecret            = "JWT_SECRET"
	envVideoExpiryHours     = "VIDEO_EXPIRY_HOURS"
	envDownloadURLExpiryMin = "DOWNLOAD_URL_EXPIRY_MINUTES"
	envMaxFileSizeGB        = "MAX_FILE_SIZE_GB"
	envMultipartThresholdMB = "MULTIPART_THRESHOLD_MB"
	envPubSubProject        = "PUBSUB_PROJECT_ID"
	envPubSubSubscription   = "PUBSUB_SUBSCRIPTION_ID"
	envPubSubEmulator       = "PUBSUB_EMULATOR_HOST"
	envLogLevel             = "LOG_LEVEL"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置 Bundle 所需的运行时输入参数。
type Params struct {
	ConfPath string // 配置文件路径（可为空，使用默认值）
}

// ServiceMetadata 保存服务标识信息，供日志和指标使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Bundle 聚合强类型的配置片段，供下游 Wire 注入使用。
type Bundle struct {
	Bootstrap *Bootstrap
	Service   ServiceMetadata
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// Build 从配置文件构建 Bundle。
//
// 流程：
// 1. 解析配置路径（应用回退规则）并加载 .env 文件
// 2. 加载配置、应用环境变量覆盖与默认值
// 3. 校验必填字段
// 4. 推导服务元信息
func Build(params Params) (*Bundle, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	bootstrap, err := loadBootstrap(confPath)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Bootstrap: bootstrap,
		Service:   buildServiceMetadata(),
	}, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
// 优先级：显式传入路径 > CONF_PATH 环境变量 > 默认路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

// loadBootstrap 从指定路径加载并解析 Bootstrap 配置。
//
// 错误阶段：
//   - "load": 文件读取失败
//   - "scan": YAML/JSON 解析失败
//   - "env": 环境变量格式错误
//   - "validate": 必填字段缺失或取值非法
func loadBootstrap(confPath string) (*Bootstrap, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer c.Close()

	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}
	if err := applyEnvOverrides(&bc); err != nil {
		return nil, BuildError{Stage: "env", Path: confPath, Err: err}
	}
	applyDefaults(&bc)
	if err := bc.Validate(); err != nil {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return &bc, nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段。
// 环境变量为空时不覆盖，保留配置文件原值。
func applyEnvOverrides(bc *Bootstrap) error {
	if bc == nil {
		return nil
	}
	overrideString(&bc.Data.Postgres.DSN, envDatabaseURL)
	if port := os.Getenv(envPort); port != "" {
		bc.Server.HTTP.Addr = replacePort(bc.Server.HTTP.Addr, port)
	}
	overrideString(&bc.Storage.Bucket, envBucket)
	overrideString(&bc.Storage.CredentialsFile, envCredentials)
	overrideString(&bc.Auth.AdminEmail, envAdminEmail)
	overrideString(&bc.Auth.AdminPasswordHash, envAdminPasswordHash)
	overrideString(&bc.Auth.JWTSecret, envJWTSecret)
	overrideString(&bc.Messaging.PubSub.ProjectID, envPubSubProject)
	overrideString(&bc.Messaging.PubSub.SubscriptionID, envPubSubSubscription)
	overrideString(&bc.Messaging.PubSub.EmulatorEndpoint, envPubSubEmulator)
	overrideString(&bc.Log.Level, envLogLevel)

	var errs []error
	if err := overrideInt(&bc.Video.ExpiryHours, envVideoExpiryHours); err != nil {
		errs = append(errs, err)
	}
	if err := overrideInt(&bc.Video.DownloadURLExpiryMinutes, envDownloadURLExpiryMin); err != nil {
		errs = append(errs, err)
	}
	if err := overrideInt64(&bc.Video.MaxFileSizeGB, envMaxFileSizeGB); err != nil {
		errs = append(errs, err)
	}
	if err := overrideInt64(&bc.Video.MultipartThresholdMB, envMultipartThresholdMB); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func overrideInt64(dst *int64, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// buildServiceMetadata 构建服务元信息，用于日志与指标标签。
// 数据来源优先级：环境变量（SERVICE_NAME、SERVICE_VERSION、APP_ENV） > 默认值。
func buildServiceMetadata() ServiceMetadata {
	host, _ := os.Hostname()
	return ServiceMetadata{
		Name:        firstNonEmpty(os.Getenv(envServiceName), defaultServiceName),
		Version:     firstNonEmpty(os.Getenv(envServiceVersion), defaultServiceVersion),
		Environment: firstNonEmpty(os.Getenv(envAppEnv), defaultEnvironment),
		InstanceID:  firstNonEmpty(host, "unknown"),
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略以保持幂等。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 按优先级返回存在的 .env 文件路径。
// godotenv 不会覆盖已设置的变量，因此排在前面的文件优先生效。
func envFileCandidates(confPath string) []string {
	dirs := orderedDirs(confPath)
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

// orderedDirs 返回 confPath 所在目录与当前工作目录（去重）。
func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}

	return dirs
}

// replacePort 替换地址中的端口部分，保留 host。
//   - "0.0.0.0:8080" -> "0.0.0.0:9000"
//   - "[::1]:8080" -> "[::1]:9000"
func replacePort(addr, newPort string) string {
	if addr == "" {
		return "0.0.0.0:" + newPort
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0:" + newPort
	}
	return net.JoinHostPort(host, newPort)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
