package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/grabservice/registry"
)

// writeGrabber 在 dir 中写入一个名为 name 的 shell 脚本，模拟抓取程序
func writeGrabber(t *testing.T, dir, name, body string) {
	t.Helper()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// waitFor 等待 g 到达 status
func waitFor(t *testing.T, g *Grab, status Status) {
	t.Helper()
	require.Eventually(t, func() bool { return g.Status() == status },
		5*time.Second, 10*time.Millisecond, "grab never reached %s", status)
}

func TestGrabHoldAndRelease(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `printf '%s\n' "$@" > "$0.args"; echo OK; exec sleep 60`)

	sup := New(&Config{BinDir: dir})
	defer sup.Close()

	g, err := sup.Grab(KindLegacy, registry.Name("media.player"))
	require.NoError(t, err)
	assert.Positive(t, g.PID())

	waitFor(t, g, StatusOK)
	assert.NoError(t, g.Err())

	args, err := os.ReadFile(filepath.Join(dir, BinaryLegacy+".args"))
	require.NoError(t, err)
	assert.Equal(t, "media.player\n", string(args))

	require.NoError(t, g.Release())
	assert.Equal(t, StatusDead, g.Status())
	assert.NoError(t, g.Err())
	assert.Empty(t, sup.Grabs())

	// 重复释放无副作用
	assert.NoError(t, g.Release())
}

func TestGrabFQDNArgs(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryFQDN, `printf '%s\n' "$@" > "$0.args"; echo OK; exec sleep 60`)

	sup := New(&Config{BinDir: dir})
	defer sup.Close()

	id, err := ParseTarget(KindFQDN, "vendor.hal@2.0::IFoo/default")
	require.NoError(t, err)

	g, err := sup.Grab(KindFQDN, id)
	require.NoError(t, err)
	waitFor(t, g, StatusOK)

	args, err := os.ReadFile(filepath.Join(dir, BinaryFQDN+".args"))
	require.NoError(t, err)
	assert.Equal(t, "vendor.hal@2.0::IFoo\ndefault\n", string(args))
}

func TestGrabReportsNO(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryVendor, `echo NO; exit 2`)

	sup := New(&Config{BinDir: dir})
	defer sup.Close()

	g, err := sup.Grab(KindVendor, registry.Name("nonexistent.service"))
	require.NoError(t, err)

	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("grabber did not exit")
	}
	assert.Equal(t, StatusDead, g.Status())
	assert.ErrorIs(t, g.Err(), ErrLookupFailed)
}

func TestGrabUnsupportedOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `echo HELLO; exec sleep 60`)

	sup := New(&Config{BinDir: dir})
	defer sup.Close()

	g, err := sup.Grab(KindLegacy, registry.Name("media.player"))
	require.NoError(t, err)

	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("unsupported grabber was not killed")
	}
	assert.Equal(t, StatusDead, g.Status())
	assert.ErrorIs(t, g.Err(), ErrUnsupportedOutput)
}

func TestGrabExitsWithoutOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `exit 1`)

	sup := New(&Config{BinDir: dir})
	defer sup.Close()

	g, err := sup.Grab(KindLegacy, registry.Name("media.player"))
	require.NoError(t, err)
	<-g.Done()
	assert.Equal(t, StatusDead, g.Status())
	assert.ErrorIs(t, g.Err(), ErrExited)
}

func TestEvents(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `echo OK; exec sleep 60`)

	sup := New(&Config{BinDir: dir})
	g, err := sup.Grab(KindLegacy, registry.Name("media.player"))
	require.NoError(t, err)
	waitFor(t, g, StatusOK)
	require.NoError(t, sup.Close())

	var got []Status
	for ev := range sup.Events() {
		assert.Same(t, g, ev.Grab)
		got = append(got, ev.Status)
	}
	assert.Equal(t, []Status{StatusWaiting, StatusOK, StatusDead}, got)

	_, err = sup.Grab(KindLegacy, registry.Name("media.player"))
	assert.ErrorIs(t, err, ErrSupervisorClosed)
}

func TestDoneClosesWhenEventsDropped(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `echo NO; exit 2`)

	// 不消费事件且缓冲只有 1，绝大多数事件会被丢弃
	sup := New(&Config{BinDir: dir}, WithEventBuffer(1))
	defer sup.Close()

	grabs := make([]*Grab, 0, 40)
	for range 40 {
		g, err := sup.Grab(KindLegacy, registry.Name("nonexistent.service"))
		require.NoError(t, err)
		grabs = append(grabs, g)
	}

	for _, g := range grabs {
		select {
		case <-g.Done():
		case <-time.After(10 * time.Second):
			t.Fatalf("grab %d never finished", g.PID())
		}
		assert.ErrorIs(t, g.Err(), ErrLookupFailed)
	}
}

func TestGrabValidation(t *testing.T) {
	sup := New(&Config{BinDir: t.TempDir()})
	defer sup.Close()

	_, err := sup.Grab(Kind("binder"), registry.Name("media.player"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = sup.Grab(KindFQDN, registry.Name("media.player"))
	assert.ErrorIs(t, err, ErrSchemeMismatch)

	_, err = sup.Grab(KindLegacy, registry.Name(""))
	assert.ErrorIs(t, err, registry.ErrInvalidIdentifier)

	// 目录中没有抓取程序
	_, err = sup.Grab(KindLegacy, registry.Name("media.player"))
	assert.Error(t, err)
}

func TestParseKindAndTarget(t *testing.T) {
	for in, want := range map[string]Kind{"legacy": KindLegacy, "FQDN": KindFQDN, "hw": KindFQDN, "vnd": KindVendor} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, BinaryVendor, KindVendor.Binary())

	id, err := ParseTarget(KindVendor, "vendor.foo")
	require.NoError(t, err)
	assert.Equal(t, registry.Name("vendor.foo"), id)

	_, err = ParseTarget(KindFQDN, "vendor.hal@2.0::IFoo")
	assert.ErrorIs(t, err, registry.ErrInvalidIdentifier)
}

func TestPrometheusCollector(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeGrabber(t, dir, BinaryLegacy, `echo OK; exec sleep 60`)

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	// 重复注册复用已有指标
	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.spawns, again.spawns)

	sup := New(&Config{BinDir: dir}, WithCollector(collector))
	g, err := sup.Grab(KindLegacy, registry.Name("media.player"))
	require.NoError(t, err)
	waitFor(t, g, StatusOK)

	families := gather(t, reg)
	assert.Equal(t, 1.0, families["grabservice_supervisor_spawns_total"]["kind=legacy"])
	assert.Equal(t, 1.0, families["grabservice_supervisor_grabs"]["kind=legacy,status=ok"])
	assert.Equal(t, 0.0, families["grabservice_supervisor_grabs"]["kind=legacy,status=waiting"])

	require.NoError(t, sup.Close())
	families = gather(t, reg)
	assert.Equal(t, 0.0, families["grabservice_supervisor_grabs"]["kind=legacy,status=ok"])
	assert.Equal(t, 0.0, families["grabservice_supervisor_grabs"]["kind=legacy,status=dead"])
}

// gather 把指标整理成 name -> labels -> value
func gather(t *testing.T, reg *prometheus.Registry) map[string]map[string]float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]map[string]float64)
	for _, mf := range mfs {
		values := make(map[string]float64)
		for _, m := range mf.GetMetric() {
			values[labelKey(m.GetLabel())] = metricValue(m)
		}
		out[mf.GetName()] = values
	}
	return out
}

func labelKey(labels []*dto.LabelPair) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	return strings.Join(parts, ",")
}

func metricValue(m *dto.Metric) float64 {
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}
