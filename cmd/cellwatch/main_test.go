package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cellwatch/internal/detection"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "synthetic", *source)
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, ":50051", *grpcListen)
	assert.Equal(t, 200*time.Millisecond, *fixtureRate)
	assert.Equal(t, "", *journalPath)
	assert.False(t, *headless)
}

func TestReadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("[{\"class_id\":0,\"confidence\":0.9}]\n\n  \n{\"detections\":[]}\n"), 0o644))

	lines, err := readFixture(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	batch, err := detection.Parse(lines[0], 0.5)
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	empty := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = readFixture(empty)
	assert.Error(t, err)

	_, err = readFixture(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestBundledFixtureParses(t *testing.T) {
	lines, err := readFixture(filepath.Join("..", "..", "config", "fixtures.jsonl"))
	require.NoError(t, err)
	for i, line := range lines {
		_, err := detection.Parse(line, 0.5)
		assert.NoError(t, err, "line %d", i+1)
	}
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(nil))
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(errors.Join(errors.New("stopping"), context.Canceled)))
	boom := errors.New("boom")
	assert.ErrorIs(t, ignoreCanceled(boom), boom)
}
