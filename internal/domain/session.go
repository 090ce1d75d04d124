package domain

import "context"

// FailureKind classifies why a session (or one of its stages) failed
type FailureKind string

const (
	FailureTimeout              FailureKind = "timeout"
	FailureNonZeroExit          FailureKind = "non_zero_exit"
	FailureInvalidCredentials   FailureKind = "invalid_credentials"
	FailureAuthChallenge        FailureKind = "auth_challenge_required"
	FailureUnclassifiedLogin    FailureKind = "unclassified_login_failure"
	FailureDownload             FailureKind = "download_failed"
	FailureCompression          FailureKind = "compression_failed"
	FailurePathNotWritable      FailureKind = "path_not_writable"
	FailureInsufficientDiskSpace FailureKind = "insufficient_disk_space"
)

// SessionError is a classified stage failure. InsufficientDiskSpace is
// advisory only and never carried here; it surfaces as a log line instead.
type SessionError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (e *SessionError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewSessionError creates a classified session error
func NewSessionError(kind FailureKind, message string) *SessionError {
	return &SessionError{Kind: kind, Message: message}
}

// SessionResult is the two-part outcome of a session: the accumulated
// human-readable status log, and the classified error if any stage failed.
type SessionResult struct {
	Log         []string      `json:"log"`
	Err         *SessionError `json:"error,omitempty"`
	ArchivePath string        `json:"archive_path,omitempty"`
	Volumes     []string      `json:"volumes,omitempty"`
}

// Append adds a status line to the log
func (r *SessionResult) Append(line string) {
	r.Log = append(r.Log, line)
}

// Failed reports whether the session ended with a classified error
func (r *SessionResult) Failed() bool {
	return r.Err != nil
}

// ProgressSample is one parsed progress observation from a line of
// subprocess output. HasBytes is false for bare percent lines, which update
// the percentage but cannot feed the speed estimator.
type ProgressSample struct {
	Percent    float64
	BytesDone  int64
	BytesTotal int64
	HasBytes   bool
}

// SessionRunner executes the authenticate-download-compress pipeline for one
// task. Implemented by infrastructure.SteamSession; mocked in queue tests.
type SessionRunner interface {
	Run(ctx context.Context, task *DownloadTask, creds Credentials) *SessionResult
}
