package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestNewError(t *testing.T) {
	require.NoError(t, NewError("create fence", vulkan.Success))
	require.False(t, IsError(vulkan.Success))
	require.True(t, IsError(vulkan.ErrorOutOfHostMemory))

	err := NewError("create fence", vulkan.ErrorOutOfHostMemory)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrResourceCreation))
	require.Contains(t, err.Error(), "create fence")

	var res *ResultError
	require.True(t, errors.As(err, &res))
	require.Equal(t, vulkan.ErrorOutOfHostMemory, res.Result)

	// The stack is kept for fatal diagnostics.
	require.Contains(t, fmt.Sprintf("%+v", err), "TestNewError")
}

func TestCheckError(t *testing.T) {
	run := func(v interface{}) (err error) {
		defer CheckError(&err)
		panic(v)
	}

	err := run(ErrUnsupportedFormat)
	require.True(t, errors.Is(err, ErrUnsupportedFormat))

	err = run("plain value")
	require.Error(t, err)
	require.Contains(t, err.Error(), "plain value")

	clean := func() (err error) {
		defer CheckError(&err)
		return nil
	}
	require.NoError(t, clean())
}

func TestLogger(t *testing.T) {
	require.NotNil(t, Logger())
	require.False(t, Logger().Enabled(context.Background(), slog.LevelError))

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	dev := newFakeDevice()
	_, err := NewTransfer(dev, dev, dev).Upload(IndexBuffer, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "kind=index")

	SetLogger(nil)
	require.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}
