package irc

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, input string) []string {
	t.Helper()
	splitter := &lineSplitter{}
	s := bufio.NewScanner(strings.NewReader(input))
	s.Split(splitter.split)

	var frames []string
	for s.Scan() {
		if len(s.Bytes()) == 0 {
			continue
		}
		frames = append(frames, decodeFrame(s.Bytes()))
	}
	require.NoError(t, s.Err())
	return frames
}

func TestFramerSplitsOnAnyTerminator(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"crlf", "PING :a\r\nPING :b\r\n", []string{"PING :a", "PING :b"}},
		{"bare lf", "PING :a\nPING :b\n", []string{"PING :a", "PING :b"}},
		{"bare cr", "PING :a\rPING :b\r", []string{"PING :a", "PING :b"}},
		{"mixed", "one\rtwo\nthree\r\nfour\n", []string{"one", "two", "three", "four"}},
		{"empty frames dropped", "\r\n\r\none\r\n\r\n", []string{"one"}},
		{"missing final terminator", "one\r\ntwo", []string{"one", "two"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, scanAll(t, tt.input))
		})
	}
}

func TestFramerTruncatesOverlongLines(t *testing.T) {
	long := strings.Repeat("a", 600)
	frames := scanAll(t, long+"\r\nnext\r\n")

	require.Len(t, frames, 2)
	require.Equal(t, long[:maxFramePayload], frames[0])
	require.Equal(t, "next", frames[1])
}

func TestFramerDiscardsOverflowAcrossReads(t *testing.T) {
	// an overlong line with no terminator in the first chunk must yield one
	// truncated frame and swallow the rest up to the next terminator; the
	// line is longer than the scanner's first 4096-byte read
	long := strings.Repeat("b", 5000)
	frames := scanAll(t, long+"\nafter\n")

	require.Equal(t, []string{long[:maxFramePayload], "after"}, frames)
}

func TestFramerReplacesInvalidUTF8(t *testing.T) {
	frames := scanAll(t, "abc\xff\xfedef\r\n")
	require.Len(t, frames, 1)
	require.Equal(t, "abc�def", frames[0])
}

func TestFramerRoundTrip(t *testing.T) {
	for _, payload := range []string{
		"PRIVMSG #chan :hello",
		"",
		strings.Repeat("x", maxFramePayload),
		"emoji ✓ and accents é",
	} {
		encoded := encodeLine(payload)
		require.True(t, strings.HasSuffix(string(encoded), "\r\n"))
		require.LessOrEqual(t, len(encoded), 512)

		if payload == "" {
			continue // empty frames are dropped on decode
		}
		frames := scanAll(t, string(encoded))
		require.Equal(t, []string{payload}, frames)
	}
}

func TestEncodeLineClampsPayload(t *testing.T) {
	long := strings.Repeat("y", 800)
	encoded := encodeLine(long)
	require.Equal(t, maxFramePayload+2, len(encoded))
	require.Equal(t, long[:maxFramePayload]+"\r\n", string(encoded))
}
