package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := Configure(Options{Service: "cdpd", Env: "test", Level: "debug", Output: &buf})
	defer closer.Close()

	logger.Debug("hello", slog.String("op", "mint_debt"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "cdpd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestConfigureWritesRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "cdpd.log")
	logger, closer := Configure(Options{Service: "cdpd", Output: &buf, File: &FileConfig{Path: path}})
	logger.Info("persisted")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestMasking(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("jwt_secret", "s3cret").Value.String())
	require.Equal(t, "mint_debt", MaskField("op", "mint_debt").Value.String())
	require.Equal(t, "", MaskField("passphrase", "").Value.String())

	require.Equal(t, "postgres://cdp:"+RedactedValue+"@db:5432/cdp", MaskDSN("postgres://cdp:hunter2@db:5432/cdp"))
	require.Equal(t, "host=db password="+RedactedValue, MaskDSN("host=db password=hunter2"))
	require.Equal(t, "file::memory:", MaskDSN("file::memory:"))
}
