package gateway

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// compressFrames writes each payload through one shared zlib writer
// with a sync flush per frame, the way the gateway transport does.
func compressFrames(t *testing.T, payloads ...interface{}) [][]byte {
	t.Helper()
	var out [][]byte
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for _, p := range payloads {
		data, err := json.Marshal(p)
		require.NoError(t, err)
		_, err = zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Flush())
		frame := make([]byte, buf.Len())
		copy(frame, buf.Bytes())
		out = append(out, frame)
		buf.Reset()
	}
	return out
}

func TestStreamReaderSharedInflateContext(t *testing.T) {
	frames := compressFrames(t,
		structs.Event{Op: OpcodeHello, D: structs.HelloEvent{HeartbeatInterval: 41250}},
		structs.Event{Op: OpcodeDispatch, T: structs.EventNameReady, S: 1},
		structs.Event{Op: OpcodeDispatch, T: structs.EventNameMessageCreate, S: 2},
	)

	pr, pw := io.Pipe()
	go func() {
		for _, f := range frames {
			pw.Write(f)
		}
		pw.Close()
	}()

	sr := newStreamReader(pr)
	defer sr.Close()

	hello, err := sr.Next()
	require.NoError(t, err)
	assert.Equal(t, OpcodeHello, hello.Op)
	d := structs.HelloEvent{}
	require.NoError(t, json.Unmarshal(hello.D, &d))
	assert.Equal(t, uint(41250), d.HeartbeatInterval)

	ready, err := sr.Next()
	require.NoError(t, err)
	assert.Equal(t, structs.EventNameReady, ready.T)

	msg, err := sr.Next()
	require.NoError(t, err)
	assert.Equal(t, structs.EventNameMessageCreate, msg.T)
	assert.Equal(t, uint64(2), msg.S)
}

func TestHasFlushSuffix(t *testing.T) {
	frames := compressFrames(t, structs.Event{Op: OpcodeHello})
	assert.True(t, hasFlushSuffix(frames[0]))
	assert.False(t, hasFlushSuffix([]byte{0x01, 0x02}))
	assert.False(t, hasFlushSuffix(nil))
}

func TestShardForGuild(t *testing.T) {
	cases := []struct {
		guildID string
		count   uint
		want    uint
	}{
		{"197038439483310086", 16, 2},
		{"197038439483310086", 1, 0},
		{"0", 4, 0},
		{"not-a-snowflake", 4, 0},
		{"197038439483310086", 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShardForGuild(tc.guildID, tc.count), "guild %s count %d", tc.guildID, tc.count)
	}
}
