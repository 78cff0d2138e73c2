package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/cliform/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.New(false, &buf)

	ctx := log.ContextAttrs(t.Context(), slog.String("run_id", "42"))
	child := log.ContextAttrs(ctx, slog.String("extra", "x"))
	logger.DebugContext(ctx, "hidden")
	logger.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "42", rec["run_id"])
	require.NotContains(t, rec, "extra")

	buf.Reset()
	logger.InfoContext(child, "child")
	rec = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "x", rec["extra"])
}

func TestVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log.New(true, &buf).Debug("debug")
	require.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	w, err := log.Open(log.Stdout, &stdout, &stderr)
	require.NoError(t, err)
	_, err = w.Write([]byte("out"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, "out", stdout.String())

	w, err = log.Open(log.Stderr, &stdout, &stderr)
	require.NoError(t, err)
	_, err = w.Write([]byte("err"))
	require.NoError(t, err)
	require.Equal(t, "err", stderr.String())

	w, err = log.Open("", &stdout, &stderr)
	require.NoError(t, err)
	_, err = w.Write([]byte("nothing"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cliform.log")
	w, err = log.Open(path, &stdout, &stderr)
	require.NoError(t, err)
	_, err = w.Write([]byte("file"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.FileExists(t, path)

	_, err = log.Open(filepath.Join(t.TempDir(), "missing", "x.log"), &stdout, &stderr)
	require.Error(t, err)
}
