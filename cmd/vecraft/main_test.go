package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecraft"
	"github.com/hupe1980/vecraft/distance"
	"github.com/hupe1980/vecraft/internal/config"
	"github.com/hupe1980/vecraft/metadata"
)

func writeLog(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wal.log")

	db, err := vecraft.Open(ctx, vecraft.WithWAL(path))
	require.NoError(t, err)
	_, err = db.CreateCollection(ctx, "docs", 2, distance.MetricCosine)
	require.NoError(t, err)
	_, err = db.CreateCollection(ctx, "img", 3, distance.MetricDot)
	require.NoError(t, err)
	_, err = db.Upsert(ctx, "docs", vecraft.Record{ID: "a", Vector: []float32{1, 0}, Metadata: metadata.Document{"k": metadata.Int(1)}})
	require.NoError(t, err)
	_, err = db.Delete(ctx, "docs", "a")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVerify(t *testing.T) {
	path := writeLog(t)

	out, err := run(t, "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 4 entries, last seq 4")
}

func TestVerifyTornTail(t *testing.T) {
	path := writeLog(t)
	appendRaw(t, path, `{"seq":5,"op":"del`)

	out, err := run(t, "verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning:")
	assert.Contains(t, out, "ok: 4 entries, last seq 4")
}

func TestVerifyCorrupt(t *testing.T) {
	path := writeLog(t)
	appendRaw(t, path, "garbage\n")

	out, err := run(t, "verify", path)
	require.ErrorIs(t, err, errCorrupt)
	assert.Contains(t, out, "corrupt:")
	assert.Contains(t, out, "4 valid entries")
}

func appendRaw(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestInspect(t *testing.T) {
	path := writeLog(t)

	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "SEQ"))
	assert.Contains(t, lines[1], "create_collection")
	assert.Contains(t, lines[1], "metric=cosine")
	assert.Contains(t, lines[3], "id=a dims=2 metadata_keys=1")

	out, err = run(t, "inspect", "--json", "--collection", "docs", "-n", "2", path)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var v entryView
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &v))
	assert.Equal(t, uint64(3), v.Seq)
	assert.Equal(t, "upsert", v.Op)
	assert.Equal(t, "docs", v.Collection)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--listen", ":6001", "--no-wal", "--metrics-addr", ":9999"}))

	f := serveFlags{}
	f.listenAddr, _ = cmd.Flags().GetString("listen")
	f.noWAL, _ = cmd.Flags().GetBool("no-wal")
	f.metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	applyFlags(cmd, cfg, f)

	assert.Equal(t, ":6001", cfg.ListenAddr)
	assert.False(t, cfg.WAL.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
	require.NoError(t, cfg.Validate())

	opts := dbOptions(cfg, vecraft.NoopLogger(), nil)
	db, err := vecraft.Open(context.Background(), opts...)
	require.NoError(t, err)
	defer db.Close()
	assert.False(t, db.Durable())
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "verify", "inspect"})
}
