package vcam

import "encoding/binary"

// v4l2 constants for VIDIOC_S_FMT on an output node.
const (
	vidiocSFmt = 0xC0D05605 // _IOWR('V', 5, struct v4l2_format), 64-bit layout

	bufTypeVideoOutput = 2
	fieldNone          = 1
	colorspaceSRGB     = 8
	formatSize         = 208

	// pixFmtRGB24 is the fourcc 'RGB3'.
	pixFmtRGB24 = uint32('R') | uint32('G')<<8 | uint32('B')<<16 | uint32('3')<<24
)

// encodeFormat builds a struct v4l2_format describing packed RGB24
// frames of the given size. The pix union starts at offset 8.
func encodeFormat(width, height int) []byte {
	buf := make([]byte, formatSize)
	le := binary.NativeEndian

	le.PutUint32(buf[0:], bufTypeVideoOutput)
	le.PutUint32(buf[8:], uint32(width))
	le.PutUint32(buf[12:], uint32(height))
	le.PutUint32(buf[16:], pixFmtRGB24)
	le.PutUint32(buf[20:], fieldNone)
	le.PutUint32(buf[24:], uint32(width*3))
	le.PutUint32(buf[28:], uint32(width*height*3))
	le.PutUint32(buf[32:], colorspaceSRGB)
	return buf
}
