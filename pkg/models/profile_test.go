package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"mp4", Profile{Container: "mp4"}, false},
		{"mkv with height", Profile{Container: "mkv", MaxHeight: 1080}, false},
		{"webm", Profile{Container: "webm"}, false},
		{"audio only ignores container", Profile{AudioOnly: true, Container: "avi"}, false},
		{"unknown container", Profile{Container: "avi"}, true},
		{"empty container", Profile{}, true},
		{"negative height", Profile{Container: "mp4", MaxHeight: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfileOutputFormat(t *testing.T) {
	assert.Equal(t, "mp3", Profile{AudioOnly: true}.OutputFormat())
	assert.Equal(t, "mkv", Profile{Container: "mkv"}.OutputFormat())
}

func TestProfileString_Canonical(t *testing.T) {
	assert.Equal(t, "audio/mp3", Profile{AudioOnly: true}.String())
	assert.Equal(t, "audio/mp3", Profile{AudioOnly: true, Container: "mp4"}.String(),
		"container must not leak into the audio key")
	assert.Equal(t, "video/mp4", Profile{Container: "mp4"}.String())
	assert.Equal(t, "video/webm/h480", Profile{Container: "webm", MaxHeight: 480}.String())
}

func TestJobStatePredicates(t *testing.T) {
	assert.True(t, JobSucceeded.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobEvicted.Terminal())
	assert.False(t, JobPending.Terminal())
	assert.True(t, JobPending.Active())
	assert.True(t, JobRunning.Active())
	assert.False(t, JobEvicted.Active())
}

func TestErrorKindRetryable(t *testing.T) {
	assert.True(t, ErrTransientFailure.Retryable())
	assert.False(t, ErrPermanentFailure.Retryable())
	assert.False(t, ErrTimeout.Retryable())
	assert.False(t, ErrStoreFull.Retryable())
}
