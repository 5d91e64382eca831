package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

// fakeExtractorScript behaves like the real tool for a handful of URL shapes:
// it honors -o and keys its outcome on the final (url) argument.
const fakeExtractorScript = `#!/bin/sh
out=
prev=
for a in "$@"; do
	[ "$prev" = "-o" ] && out=$a
	prev=$a
done
url=$prev
case "$url" in
*ok*)       printf 'raw media' > "$out"; echo "A Fine Clip" ;;
*empty*)    : ;;
*gone*)     echo "ERROR: Video unavailable" >&2; exit 1 ;;
*throttle*) echo "ERROR: HTTP Error 429: Too Many Requests" >&2; exit 1 ;;
*leaky*)    echo "ERROR: cannot write $out" >&2; exit 1 ;;
*mystery*)  echo "ERROR: something nobody has seen before" >&2; exit 1 ;;
*slow*)     sleep 5 ;;
esac
`

func newFakeAdapter(t *testing.T, timeout time.Duration, redactDirs ...string) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(bin, []byte(fakeExtractorScript), 0o755))
	a := New(Config{BinPath: bin, Timeout: timeout, OutputCap: 4096, RedactDirs: redactDirs})
	return a, dir
}

func TestExtract_Success(t *testing.T) {
	a, dir := newFakeAdapter(t, 5*time.Second)
	staging := filepath.Join(dir, "stage.m4a")

	out, err := a.Extract(context.Background(), "https://example.com/ok", staging, models.Profile{AudioOnly: true})
	require.NoError(t, err)

	assert.Equal(t, tool.ClassSuccess, out.Class)
	assert.Equal(t, staging, out.Path)
	assert.Equal(t, "m4a", out.Format)
	assert.Equal(t, "A Fine Clip", out.Title)
	data, err := os.ReadFile(staging)
	require.NoError(t, err)
	assert.Equal(t, "raw media", string(data))
}

func TestExtract_ZeroExitWithoutOutputIsInternal(t *testing.T) {
	a, dir := newFakeAdapter(t, 5*time.Second)
	staging := filepath.Join(dir, "stage.mp4")

	out, err := a.Extract(context.Background(), "https://example.com/empty", staging, models.Profile{Container: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, tool.ClassInternal, out.Class)
}

func TestExtract_Classification(t *testing.T) {
	a, dir := newFakeAdapter(t, 5*time.Second)

	tests := []struct {
		name string
		url  string
		want tool.Class
	}{
		{"removed video is permanent", "https://example.com/gone", tool.ClassPermanent},
		{"throttling is transient", "https://example.com/throttle", tool.ClassTransient},
		{"unknown failures default to transient", "https://example.com/mystery", tool.ClassTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staging := filepath.Join(dir, "c-"+string(tt.want))
			out, err := a.Extract(context.Background(), tt.url, staging, models.Profile{AudioOnly: true})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Class)
			assert.NotEmpty(t, out.Diagnostic)
		})
	}
}

func TestExtract_Timeout(t *testing.T) {
	a, dir := newFakeAdapter(t, 50*time.Millisecond)
	staging := filepath.Join(dir, "stage.m4a")

	out, err := a.Extract(context.Background(), "https://example.com/slow", staging, models.Profile{AudioOnly: true})
	require.NoError(t, err)
	assert.Equal(t, tool.ClassTimeout, out.Class)
}

func TestExtract_DiagnosticRedactsStagingDir(t *testing.T) {
	a, dir := newFakeAdapter(t, 5*time.Second)
	a.cfg.RedactDirs = []string{dir}
	staging := filepath.Join(dir, "stage.m4a")

	out, err := a.Extract(context.Background(), "https://example.com/leaky", staging, models.Profile{AudioOnly: true})
	require.NoError(t, err)
	assert.NotContains(t, out.Diagnostic, dir)
	assert.Contains(t, out.Diagnostic, "<dir>")
}

func TestDownloadArgs(t *testing.T) {
	a := &Adapter{}

	tests := []struct {
		name    string
		profile models.Profile
		want    []string
	}{
		{
			"audio only",
			models.Profile{AudioOnly: true},
			[]string{"--no-playlist", "--no-warnings", "--no-progress",
				"--print", "after_move:title", "--no-simulate", "-o", "/s/x",
				"-f", "bestaudio/best", "u"},
		},
		{
			"video unbounded",
			models.Profile{Container: "mp4"},
			[]string{"--no-playlist", "--no-warnings", "--no-progress",
				"--print", "after_move:title", "--no-simulate", "-o", "/s/x",
				"--merge-output-format", "mp4", "-f", "bestvideo+bestaudio/best", "u"},
		},
		{
			"video capped at 720",
			models.Profile{Container: "mp4", MaxHeight: 720},
			[]string{"--no-playlist", "--no-warnings", "--no-progress",
				"--print", "after_move:title", "--no-simulate", "-o", "/s/x",
				"--merge-output-format", "mp4",
				"-f", "bestvideo[height<=720]+bestaudio/best[height<=720]", "u"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.downloadArgs("u", "/s/x", tt.profile))
		})
	}
}

func TestRawFormat(t *testing.T) {
	assert.Equal(t, "m4a", RawFormat(models.Profile{AudioOnly: true}))
	assert.Equal(t, "mp4", RawFormat(models.Profile{Container: "webm"}))
}

// fakeProbeScript answers -J requests with canned metadata.
const fakeProbeScript = `#!/bin/sh
for a in "$@"; do url=$a; done
case "$url" in
*ok*)
	cat <<'EOF'
{"id":"abc123","title":"A Title","uploader":"someone","duration":212.5,
 "webpage_url":"https://example.com/watch?v=abc123",
 "formats":[{"format_id":"140","ext":"m4a","vcodec":"none","acodec":"mp4a.40.2"},
            {"format_id":"136","ext":"mp4","height":720,"vcodec":"avc1","acodec":"none"}]}
EOF
	;;
*garbled*) echo "not json at all" ;;
*gone*)    echo "ERROR: Private video" >&2; exit 1 ;;
esac
`

func newProbeAdapter(t *testing.T) *Adapter {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(bin, []byte(fakeProbeScript), 0o755))
	return New(Config{BinPath: bin, Timeout: 5 * time.Second, OutputCap: 1 << 16})
}

func TestProbe_ParsesMetadata(t *testing.T) {
	a := newProbeAdapter(t)

	info, err := a.Probe(context.Background(), "https://example.com/ok")
	require.NoError(t, err)

	assert.Equal(t, "abc123", info.ID)
	assert.Equal(t, "A Title", info.Title)
	assert.InDelta(t, 212.5, info.DurationSec, 0.001)
	require.Len(t, info.Formats, 2)
	assert.False(t, info.Formats[0].HasVideo)
	assert.True(t, info.Formats[0].HasAudio)
	assert.True(t, info.Formats[1].HasVideo)
	assert.Equal(t, 720, info.Formats[1].Height)
}

func TestProbe_ClassifiedFailures(t *testing.T) {
	a := newProbeAdapter(t)

	_, err := a.Probe(context.Background(), "https://example.com/gone")
	var perr *ProbeError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, tool.ClassPermanent, perr.Class)

	_, err = a.Probe(context.Background(), "https://example.com/garbled")
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, tool.ClassInternal, perr.Class)
}
