// Package vp8 wraps the libvpx VP8 encoder used for the WebRTC video track.
package vp8

// #cgo pkg-config: vpx
//
// #include <string.h>
// #include <vpx/vp8cx.h>
// #include <vpx/vpx_encoder.h>
//
// static int vpx_plane_width(const vpx_image_t *img, int plane) {
//     if (plane <= 0 || img->x_chroma_shift <= 0)
//         return img->d_w;
//     return (img->d_w + 1) >> img->x_chroma_shift;
// }
//
// static int vpx_plane_height(const vpx_image_t *img, int plane) {
//     if (plane <= 0 || img->y_chroma_shift <= 0)
//         return img->d_h;
//     return (img->d_h + 1) >> img->y_chroma_shift;
// }
//
// static void i420_to_vpx(vpx_image_t *img, const uint8_t *yuv) {
//     for (int plane = 0; plane < 3; ++plane) {
//         const int h = vpx_plane_height(img, plane);
//         const int w = vpx_plane_width(img, plane);
//         unsigned char *buf = img->planes[plane];
//         for (int i = 0; i < h; ++i) {
//             memcpy(buf, yuv, w);
//             buf += img->stride[plane];
//             yuv += w;
//         }
//     }
// }
//
// static size_t encode_i420(vpx_codec_ctx_t *ctx, vpx_image_t *img, vpx_codec_pts_t pts, uint64_t flags, const void *yuv, void **out) {
//     i420_to_vpx(img, yuv);
//     if (vpx_codec_encode(ctx, img, pts, 1, flags, VPX_DL_REALTIME) != 0)
//         return 0;
//
//     const vpx_codec_cx_pkt_t *pkt = NULL;
//     vpx_codec_iter_t iter = NULL;
//     while ((pkt = vpx_codec_get_cx_data(ctx, &iter)))
//         if (pkt->kind == VPX_CODEC_CX_FRAME_PKT) {
//             *out = pkt->data.frame.buf;
//             return pkt->data.frame.sz;
//         }
//     return 0;
// }
//
// static vpx_codec_err_t vp8_enc_config_default(vpx_codec_enc_cfg_t *cfg) {
//     return vpx_codec_enc_config_default(vpx_codec_vp8_cx(), cfg, 0);
// }
//
// static vpx_codec_err_t vp8_enc_init(vpx_codec_ctx_t *codec, vpx_codec_enc_cfg_t *cfg) {
//     return vpx_codec_enc_init(codec, vpx_codec_vp8_cx(), cfg, 0);
// }
//
import "C"

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/inloco/rtspview/internal/frame"
)

const (
	keyFrameInterval = 10
	targetBitrate    = 2000 // kbit/s
)

// Encoder turns RGBA pictures of a fixed size into VP8 frames.
type Encoder struct {
	size       image.Point
	codecCtx   C.vpx_codec_ctx_t
	vpxImage   C.vpx_image_t
	yuv        []byte
	frameCount uint
	closed     bool
}

// NewEncoder configures a realtime VP8 encoder for size at frameRate.
func NewEncoder(size image.Point, frameRate int) (*Encoder, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("vp8: invalid size %v", size)
	}
	if frameRate <= 0 {
		frameRate = 10
	}

	var cfg C.vpx_codec_enc_cfg_t
	if C.vp8_enc_config_default(&cfg) != 0 {
		return nil, fmt.Errorf("vp8: can't init default enc. config")
	}
	cfg.g_w = C.uint(size.X)
	cfg.g_h = C.uint(size.Y)
	cfg.g_timebase.num = 1
	cfg.g_timebase.den = C.int(frameRate)
	cfg.g_error_resilient = 1
	cfg.rc_target_bitrate = targetBitrate

	e := &Encoder{
		size: size,
		yuv:  make([]byte, frame.I420Size(size.X, size.Y)),
	}
	if C.vp8_enc_init(&e.codecCtx, &cfg) != 0 {
		return nil, fmt.Errorf("vp8: failed to initialize enc ctx")
	}
	if C.vpx_img_alloc(&e.vpxImage, C.VPX_IMG_FMT_I420, C.uint(size.X), C.uint(size.Y), 0) == nil {
		C.vpx_codec_destroy(&e.codecCtx)
		return nil, fmt.Errorf("vp8: can't alloc. vpx image")
	}
	return e, nil
}

// Encode compresses img, which must match the encoder size. It returns nil
// data when the encoder buffered the picture without emitting a packet.
func (e *Encoder) Encode(img *image.RGBA) ([]byte, error) {
	if e.closed {
		return nil, fmt.Errorf("vp8: encoder closed")
	}
	if img.Rect.Size() != e.size {
		return nil, fmt.Errorf("vp8: frame size %v does not match encoder size %v", img.Rect.Size(), e.size)
	}

	frame.RGBAToI420(e.yuv, img)

	var flags C.uint64_t
	if e.frameCount%keyFrameInterval == 0 {
		flags |= C.VPX_EFLAG_FORCE_KF
	}

	var out unsafe.Pointer
	n := C.encode_i420(
		&e.codecCtx,
		&e.vpxImage,
		C.vpx_codec_pts_t(e.frameCount),
		flags,
		unsafe.Pointer(&e.yuv[0]),
		&out,
	)
	e.frameCount++

	if int(n) <= 0 {
		return nil, nil
	}
	return C.GoBytes(out, C.int(n)), nil
}

// Size returns the picture size the encoder was built for.
func (e *Encoder) Size() image.Point {
	return e.size
}

// Close releases libvpx resources.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	C.vpx_img_free(&e.vpxImage)
	C.vpx_codec_destroy(&e.codecCtx)
	return nil
}
