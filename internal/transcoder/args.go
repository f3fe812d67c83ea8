// Package transcoder launches the external ffmpeg process that turns a stream
// URL into raw rgb24 frames on its standard output.
package transcoder

import (
	"fmt"
	"strings"
)

// Options tune the generated command line.
type Options struct {
	// RTSPTransport is passed as -rtsp_transport for rtsp:// and rtsps://
	// inputs when non-empty (tcp, udp, http).
	RTSPTransport string
	// ExtraInputArgs are inserted before -i.
	ExtraInputArgs []string
}

// Args returns the ffmpeg arguments decoding url to rgb24 frames of
// width x height on stdout. Audio is disabled and the banner is hidden so
// that anything on stderr is an error.
func Args(url string, width, height int, opts Options) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if opts.RTSPTransport != "" && isRTSP(url) {
		args = append(args, "-rtsp_transport", opts.RTSPTransport)
	}
	args = append(args, opts.ExtraInputArgs...)
	args = append(args,
		"-i", url,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	return args
}

func isRTSP(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "rtsp://") || strings.HasPrefix(u, "rtsps://")
}
