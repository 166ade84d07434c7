// Package encoding assembles captured frame sequences into GIF or video
// artifacts with ffmpeg, re-encoding once at a reduced profile when the
// result exceeds its byte budget.
package encoding
