package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/grabservice/supervisor"
	"github.com/ceyewan/grabservice/testkit"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
}

func TestWatchNoTargets(t *testing.T) {
	err := Watch(context.Background(), WatchConfig{Kind: supervisor.KindLegacy}, nil, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestWatchInvalidTarget(t *testing.T) {
	err := Watch(context.Background(), WatchConfig{
		BinDir:  t.TempDir(),
		Kind:    supervisor.KindFQDN,
		Targets: []string{"vendor.hal@2.0::IFoo"},
	}, nil, nil)
	assert.Error(t, err)
}

func TestWatchReturnsWhenAllDead(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	writeScript(t, dir, supervisor.BinaryLegacy, `echo NO; exit 2`)

	ctx, cancel := testkit.NewContext(t, 10*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	err := Watch(ctx, WatchConfig{
		BinDir:  dir,
		Kind:    supervisor.KindLegacy,
		Targets: []string{"nonexistent.service", "other.service"},
	}, testkit.NewLogger(), reg)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "Watch should return before the deadline")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var spawns float64
	for _, mf := range mfs {
		if mf.GetName() == "grabservice_supervisor_spawns_total" {
			spawns = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, spawns)
}

func TestWatchManyTargetsAllDead(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	writeScript(t, dir, supervisor.BinaryLegacy, `echo NO; exit 2`)

	// 每个目标至少产生 waiting 和 dead 两条事件，总数远超默认事件缓冲
	targets := make([]string, 100)
	for i := range targets {
		targets[i] = fmt.Sprintf("missing.service%d", i)
	}

	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	err := Watch(ctx, WatchConfig{
		BinDir:  dir,
		Kind:    supervisor.KindLegacy,
		Targets: targets,
	}, testkit.NewLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, ctx.Err(), "Watch should return once every grab is dead")
}

func TestWatchStopsOnCancel(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	writeScript(t, dir, supervisor.BinaryVendor, `echo OK; exec sleep 60`)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Watch(ctx, WatchConfig{
		BinDir:  dir,
		Kind:    supervisor.KindVendor,
		Targets: []string{"vendor.foo"},
	}, testkit.NewLogger(), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
