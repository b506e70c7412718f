package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	start bool
	cmd   Command
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{cmd: cmd})
	return []byte(f.output), f.err
}

func (f *fakeRunner) Start(_ context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{start: true, cmd: cmd})
	return f.err
}

func systemdSettings(dir string) Settings {
	return Settings{
		Mode:         ModeSystemd,
		ServerUnit:   "k3s",
		AgentUnit:    "k3s-agent",
		AgentEnvFile: filepath.Join(dir, "k3s-agent.service.env"),
	}
}

func TestStartControlService_Systemd(t *testing.T) {
	r := &fakeRunner{}
	k := NewK3s(systemdSettings(t.TempDir()), WithRunner(r))

	require.NoError(t, k.StartControlService(context.Background()))
	require.Len(t, r.calls, 1)
	assert.Equal(t, "systemctl start k3s", r.calls[0].cmd.String())
}

func TestStartControlService_Exec(t *testing.T) {
	r := &fakeRunner{}
	k := NewK3s(Settings{Mode: ModeExec, ServerArgs: []string{"--disable", "traefik"}}, WithRunner(r))

	require.NoError(t, k.StartControlService(context.Background()))
	require.Len(t, r.calls, 1)
	assert.True(t, r.calls[0].start)
	assert.Equal(t, "k3s server --disable traefik", r.calls[0].cmd.String())
}

func TestHealthy(t *testing.T) {
	r := &fakeRunner{output: "ok\n"}
	k := NewK3s(Settings{}, WithRunner(r))
	require.NoError(t, k.Healthy(context.Background()))
	assert.Equal(t, "k3s kubectl get --raw=/readyz", r.calls[0].cmd.String())

	r.output = "[-]etcd failed"
	assert.Error(t, k.Healthy(context.Background()))

	r.err = errors.New("connection refused")
	assert.Error(t, k.Healthy(context.Background()))
}

func TestJoin_SystemdWritesEnvFile(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	k := NewK3s(systemdSettings(dir), WithRunner(r))

	require.NoError(t, k.Join(context.Background(), "https://10.0.0.5:6443", "tok-123"))

	data, err := os.ReadFile(filepath.Join(dir, "k3s-agent.service.env"))
	require.NoError(t, err)
	assert.Equal(t, "K3S_URL='https://10.0.0.5:6443'\nK3S_TOKEN='tok-123'\n", string(data))

	info, err := os.Stat(filepath.Join(dir, "k3s-agent.service.env"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Len(t, r.calls, 1)
	assert.Equal(t, "systemctl restart k3s-agent", r.calls[0].cmd.String())
}

func TestJoin_ExecKeepsSecretOutOfArgv(t *testing.T) {
	r := &fakeRunner{}
	k := NewK3s(Settings{Mode: ModeExec, AgentArgs: []string{"--node-label", "role=worker"}}, WithRunner(r))

	require.NoError(t, k.Join(context.Background(), "https://10.0.0.5:6443", "tok-123"))
	require.Len(t, r.calls, 1)

	c := r.calls[0].cmd
	assert.Equal(t, "k3s agent --server https://10.0.0.5:6443 --node-label role=worker", c.String())
	assert.NotContains(t, strings.Join(c.Args, " "), "tok-123")
	assert.Contains(t, c.Env, "K3S_TOKEN=tok-123")
	assert.Contains(t, c.Env, "K3S_URL=https://10.0.0.5:6443")
}

func TestJoin_RequiresBothValues(t *testing.T) {
	r := &fakeRunner{}
	k := NewK3s(Settings{Mode: ModeExec}, WithRunner(r))

	assert.Error(t, k.Join(context.Background(), "", "tok-123"))
	assert.Error(t, k.Join(context.Background(), "https://10.0.0.5:6443", ""))
	assert.Empty(t, r.calls)
}

func TestJoin_Failure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1")}
	k := NewK3s(systemdSettings(t.TempDir()), WithRunner(r))

	err := k.Join(context.Background(), "https://10.0.0.5:6443", "tok-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join failed")
}

func TestReadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node-token")
	require.NoError(t, os.WriteFile(path, []byte("  K10abc::server:secret\n"), 0o600))

	token, err := ReadToken(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "K10abc::server:secret", token)
}

func TestReadToken_AppearsLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node-token")
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = os.WriteFile(path, []byte("late-token"), 0o600)
	}()

	token, err := ReadToken(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late-token", token)
}

func TestReadToken_EmptyIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node-token")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o600))

	_, err := ReadToken(context.Background(), path, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent or empty")
}

func TestReadToken_Missing(t *testing.T) {
	_, err := ReadToken(context.Background(), filepath.Join(t.TempDir(), "none"), 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent or empty")
}
