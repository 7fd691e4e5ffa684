package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ReencodeTimeout is the longest a re-encode may run
const ReencodeTimeout = 10 * time.Minute

// maxErrorOutput is the number of bytes of ffmpeg output kept in an error
const maxErrorOutput = 500

// H264Path returns the path a re-encoded copy of src is written to, the
// extension of src is replaced with .h264.mp4
func H264Path(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".h264.mp4"
}

// reencodeArgs returns the ffmpeg arguments producing a browser playable
// H.264 file without audio
func reencodeArgs(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-an",
		dst,
	}
}

// ReencodeH264 re-encodes src with the ffmpeg binary named by ffmpeg.  On
// success src is removed and the new path returned.  On failure src is
// left in place and returned along with the error, so callers can fall back
// to serving it
func ReencodeH264(ctx context.Context, ffmpeg, src string) (string, error) {

	path, err := exec.LookPath(ffmpeg)

	if err != nil {
		return src, fmt.Errorf("unable to find ffmpeg in your path: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ReencodeTimeout)
	defer cancel()

	dst := H264Path(src)
	cmd := exec.CommandContext(ctx, path, reencodeArgs(src, dst)...)

	out, err := cmd.CombinedOutput()

	if err != nil {
		msg := string(out)

		if len(msg) > maxErrorOutput {
			msg = msg[:maxErrorOutput]
		}

		os.Remove(dst)
		return src, fmt.Errorf("ffmpeg re-encode failed: %w (%v)", err, msg)
	}

	os.Remove(src)

	return dst, nil
}
