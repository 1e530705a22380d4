package httpd

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiver_StopsAtTerminator(t *testing.T) {
	rc := Receiver{ChunkSize: 8, MaxSize: 8192}
	input := "GET / HTTP/1.1\r\nHost: x\r\n\r\nBODY-THAT-IS-NOT-READ"

	got, err := rc.Receive(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n", string(got))
}

func TestReceiver_TerminatorAcrossReads(t *testing.T) {
	rc := Receiver{ChunkSize: 1024, MaxSize: 8192}
	input := "HEAD /a HTTP/1.1\r\n\r\n"

	// 1バイトずつしか返さないReaderでも終端を見つけられる
	got, err := rc.Receive(iotest.OneByteReader(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestReceiver_MaxSize(t *testing.T) {
	rc := Receiver{ChunkSize: 10, MaxSize: 25}
	input := strings.Repeat("A", 100)

	got, err := rc.Receive(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, got, 25)
}

func TestReceiver_ConnectionClosed(t *testing.T) {
	rc := Receiver{}

	_, err := rc.Receive(strings.NewReader("GET / HTTP/1.1\r\n"))
	assert.ErrorIs(t, err, ErrConnectionClosed)

	_, err = rc.Receive(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestReceiver_ReadError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Receiver{}.Receive(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
}
