package pdfio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkWriteTracksByteCount(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 5, s.BytesWritten())

	n, err = s.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.EqualValues(t, 11, s.BytesWritten())
	assert.Equal(t, "hello world", buf.String())
}

func TestSinkWriteAfterCloseFails(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Close())
	_, err := s.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestSinkWaitForDrainRespectsCancellation(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WaitForDrain(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSinkWaitForDrainAfterCloseFails(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Close())
	err := s.WaitForDrain(context.Background())
	assert.ErrorIs(t, err, ErrWriterClosed)
}
