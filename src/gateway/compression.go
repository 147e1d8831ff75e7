package gateway

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// zlibFlushSuffix terminates every transport payload when the
// connection negotiated zlib-stream. The inflate context is shared
// across the whole connection, never reset per frame.
var zlibFlushSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// streamReader decodes consecutive gateway frames out of a single
// zlib stream. The underlying reader is fed raw transport messages;
// the zlib reader is created lazily because its constructor blocks on
// the two-byte stream header.
type streamReader struct {
	src io.Reader
	zr  io.ReadCloser
	dec *json.Decoder
}

func newStreamReader(src io.Reader) *streamReader {
	return &streamReader{src: src}
}

func (s *streamReader) Next() (*structs.RawEvent, error) {
	if s.zr == nil {
		zr, err := zlib.NewReader(s.src)
		if err != nil {
			return nil, err
		}
		s.zr = zr
		s.dec = json.NewDecoder(zr)
	}
	e := &structs.RawEvent{}
	if err := s.dec.Decode(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *streamReader) Close() error {
	if s.zr != nil {
		return s.zr.Close()
	}
	return nil
}

// hasFlushSuffix reports whether a transport message completes a
// zlib-stream payload.
func hasFlushSuffix(frame []byte) bool {
	return bytes.HasSuffix(frame, zlibFlushSuffix)
}
