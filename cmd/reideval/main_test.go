package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-reideval"
	"github.com/swdee/go-reideval/config"
	"github.com/swdee/go-reideval/feature"
	"github.com/swdee/go-reideval/history"
)

func TestApplyDataFlags(t *testing.T) {

	cmd := &cobra.Command{Use: "test"}
	addDataFlags(cmd)

	require.NoError(t, cmd.Flags().Parse([]string{"--labels", "l.txt", "--num-query", "7"}))

	cfg := config.Defaults()
	cfg.Data.Features = "keep.bin"

	applyDataFlags(cmd, cfg)

	assert.Equal(t, "l.txt", cfg.Data.Labels)
	assert.Equal(t, 7, cfg.Data.NumQuery)
	assert.Equal(t, "keep.bin", cfg.Data.Features)
	assert.Empty(t, cfg.Data.Items)
}

func TestPrintRuns(t *testing.T) {

	runs := []history.Run{
		{
			ID:          "01JABCDEF",
			CreatedAt:   time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
			Model:       "osnet_x1_0",
			Fingerprint: "0123456789abcdef0123",
			Rank1:       0.9,
			Rank5:       0.97,
			MAP:         0.75,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printRuns(&buf, runs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "2024-05-01 10:30:00")
	assert.Contains(t, lines[1], "0.9000")
	assert.Contains(t, lines[1], "0123456789ab")
	assert.NotContains(t, lines[1], "0123456789abc")
}

func TestVersionCmd(t *testing.T) {

	var buf bytes.Buffer

	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "reideval dev\n", buf.String())
}

func TestLoadPairFromFeatures(t *testing.T) {

	path := filepath.Join(t.TempDir(), "feats.bin")
	rows := [][]float32{{1, 0}, {0, 2}, {3, 3}}
	require.NoError(t, feature.Save(path, rows, feature.Float32))

	cfg := config.Defaults()
	cfg.Data.Features = path
	logger := newLogger(cfg.Log)

	pair, err := loadPair(context.Background(), cfg, &logger, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 3}, {1, 0}}, pair)

	d, err := feature.Compare(pair[0], pair[1])
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printDistances(&buf, 2, 0, d))
	assert.Contains(t, buf.String(), "cosine similarity  0.7071")
	assert.Contains(t, buf.String(), "items 2 and 0")

	_, err = loadPair(context.Background(), cfg, &logger, 0, 3)
	require.ErrorIs(t, err, reideval.ErrIndexOutOfRange)
}
