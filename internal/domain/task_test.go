package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownloadTask(t *testing.T) {
	creds := Credentials{Username: "gabe", Password: "hunter2"}
	task := NewDownloadTask("440", "https://store.steampowered.com/app/440/Team_Fortress_2/", "/out/game.7z", creds, false)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "440", task.AppID)
	assert.Equal(t, "/out/game.7z", task.OutputPath)
	assert.Equal(t, StatusQueued, task.Status)
	assert.False(t, task.Anonymous)
	assert.False(t, task.Resume)
	assert.Equal(t, creds, task.Credentials())
}

func TestNewDownloadTask_AnonymousWhenNoUsername(t *testing.T) {
	task := NewDownloadTask("440", "", "/out/game.7z", Credentials{}, false)
	assert.True(t, task.Anonymous)
	assert.True(t, task.Credentials().IsAnonymous())
}

func TestDownloadTask_MarkRunning(t *testing.T) {
	task := NewDownloadTask("440", "", "/out/game.7z", Credentials{Anonymous: true}, false)

	task.MarkRunning()

	assert.Equal(t, StatusRunning, task.Status)
	assert.NotNil(t, task.StartedAt)
}

func TestDownloadTask_MarkCompleted(t *testing.T) {
	task := NewDownloadTask("440", "", "/out/game.7z", Credentials{Anonymous: true}, false)

	task.MarkCompleted("/out/game.7z.001")

	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, "/out/game.7z.001", task.ArchivePath)
	assert.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())
}

func TestDownloadTask_MarkFailed(t *testing.T) {
	task := NewDownloadTask("440", "", "/out/game.7z", Credentials{Anonymous: true}, false)

	task.MarkFailed(errors.New("download failed"))

	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "download failed", task.ErrorMessage)
	assert.True(t, task.IsTerminal())
}

func TestCredentials_IsAnonymous(t *testing.T) {
	assert.True(t, Credentials{}.IsAnonymous())
	assert.True(t, Credentials{Anonymous: true, Username: "gabe"}.IsAnonymous())
	assert.False(t, Credentials{Username: "gabe", Password: "hunter2"}.IsAnonymous())
}

func TestExtractAppID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"store URL", "https://store.steampowered.com/app/440/Team_Fortress_2/", "440", false},
		{"store URL without trailing slug", "https://store.steampowered.com/app/730", "730", false},
		{"bare numeric ID", "1091500", "1091500", false},
		{"unrelated URL", "https://example.com/game/440x", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAppID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionError_Error(t *testing.T) {
	err := NewSessionError(FailureInvalidCredentials, "Invalid username or password.")
	assert.Equal(t, "invalid_credentials: Invalid username or password.", err.Error())
}

func TestSessionResult_Append(t *testing.T) {
	var result SessionResult
	result.Append("Login successful.")
	result.Append("Downloading: 50% complete")

	assert.Equal(t, []string{"Login successful.", "Downloading: 50% complete"}, result.Log)
	assert.False(t, result.Failed())

	result.Err = NewSessionError(FailureDownload, "exit status 8")
	assert.True(t, result.Failed())
}
