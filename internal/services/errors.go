package services

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误原因（kratos error reason），与 HTTP 状态码一起返回给调用方。
const (
	ReasonValidationFailed      = "VALIDATION_FAILED"
	ReasonUnauthenticated       = "UNAUTHENTICATED"
	ReasonInvalidToken          = "INVALID_TOKEN"
	ReasonInvalidCredentials    = "INVALID_CREDENTIALS"
	ReasonVideoNotFound         = "VIDEO_NOT_FOUND"
	ReasonVideoExpired          = "VIDEO_EXPIRED"
	ReasonIncompleteUpload      = "INCOMPLETE_UPLOAD"
	ReasonUploadNotFound        = "UPLOAD_NOT_FOUND"
	ReasonUploadSessionNotFound = "UPLOAD_SESSION_NOT_FOUND"
	ReasonStorageUnavailable    = "STORAGE_UNAVAILABLE"

	// Forbidden 的细分原因。
	ReasonAlreadyDownloaded = "already_downloaded"
	ReasonDisabledByAdmin   = "disabled_by_admin"
	ReasonUploadPending     = "upload_pending"
	ReasonNotAdmin          = "not_admin"
)

const statusGone = 410

// ErrValidation 构造 400 校验错误。
func ErrValidation(message string) *kerrors.Error {
	return kerrors.BadRequest(ReasonValidationFailed, message)
}

// ErrUnauthenticated 构造缺少凭证的 401 错误。
func ErrUnauthenticated(message string) *kerrors.Error {
	return kerrors.Unauthorized(ReasonUnauthenticated, message)
}

// ErrInvalidToken 构造令牌无效的 401 错误。
func ErrInvalidToken(message string) *kerrors.Error {
	return kerrors.Unauthorized(ReasonInvalidToken, message)
}

// ErrInvalidCredentials 构造登录失败的 401 错误。
func ErrInvalidCredentials() *kerrors.Error {
	return kerrors.Unauthorized(ReasonInvalidCredentials, "Invalid email or password")
}

// ErrForbidden 构造携带机器可读原因的 403 错误。
func ErrForbidden(reason, message string) *kerrors.Error {
	return kerrors.Forbidden(reason, message)
}

// ErrVideoNotFound 构造 404 错误。
func ErrVideoNotFound() *kerrors.Error {
	return kerrors.NotFound(ReasonVideoNotFound, "video not found")
}

// ErrVideoExpired 构造 410 错误。
func ErrVideoExpired() *kerrors.Error {
	return kerrors.New(statusGone, ReasonVideoExpired, "video has expired")
}

// ErrIncompleteUpload 构造分片不完整错误。
func ErrIncompleteUpload(message string) *kerrors.Error {
	return kerrors.BadRequest(ReasonIncompleteUpload, message)
}

// ErrUploadNotFound 构造重试后仍未发现对象的错误。
func ErrUploadNotFound() *kerrors.Error {
	return kerrors.BadRequest(ReasonUploadNotFound, "uploaded object not found in storage")
}

// ErrUploadSessionNotFound 构造分片会话不存在的错误。
func ErrUploadSessionNotFound() *kerrors.Error {
	return kerrors.NotFound(ReasonUploadSessionNotFound, "multipart upload session not found")
}

// ErrStorageUnavailable 构造底层存储失败的 503 错误。
func ErrStorageUnavailable(message string, cause error) *kerrors.Error {
	return kerrors.ServiceUnavailable(ReasonStorageUnavailable, message).WithCause(cause)
}
