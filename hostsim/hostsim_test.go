package hostsim_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/hostsim"
	"github.com/outofforest/hostlink/pipe"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
)

const configYAML = `
origin: https://teams.example.com
frameContext: sidePanel
hostClientType: android
clientSupportedSDKVersion: 2.0.5
runtime:
  apiVersion: 3
  supports:
    presence: {}
    dialog:
      update: {}
results:
  mail.composeMail: [null, true]
`

func TestParseConfig(t *testing.T) {
	requireT := require.New(t)

	config, err := hostsim.ParseConfig([]byte(configYAML))
	requireT.NoError(err)
	requireT.Equal("https://teams.example.com", config.Origin)
	requireT.Equal(wire.FrameContextSidePanel, config.FrameContext)
	requireT.Equal(wire.HostClientAndroid, config.HostClientType)
	requireT.Equal("2.0.5", config.ClientSupportedSDKVersion)
	requireT.False(config.LegacyReply)
	requireT.NotNil(config.Runtime)
	requireT.Equal(3, config.Runtime.APIVersion)
	requireT.NotNil(config.Runtime.Supports.Presence)
	requireT.NotNil(config.Runtime.Supports.Dialog)
	requireT.NotNil(config.Runtime.Supports.Dialog.Update)
	requireT.Nil(config.Runtime.Supports.Dialog.Bot)
	requireT.Nil(config.Runtime.Supports.Mail)
	requireT.Equal([]any{nil, true}, config.Results["mail.composeMail"])
}

func TestParseConfigDefaults(t *testing.T) {
	requireT := require.New(t)

	config, err := hostsim.ParseConfig([]byte("legacyReply: true\n"))
	requireT.NoError(err)

	expected := hostsim.DefaultConfig()
	expected.LegacyReply = true
	requireT.Equal(expected, config)
}

func TestParseConfigErrors(t *testing.T) {
	requireT := require.New(t)

	_, err := hostsim.ParseConfig([]byte("frameContext: nowhere\n"))
	requireT.Error(err)

	_, err = hostsim.ParseConfig([]byte("runtime:\n  apiVersion: 0\n"))
	requireT.Error(err)

	_, err = hostsim.ParseConfig([]byte("origin: [\n"))
	requireT.Error(err)
}

func TestLoadConfig(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "host.yaml")
	requireT.NoError(os.WriteFile(path, []byte(configYAML), 0o600))

	config, err := hostsim.LoadConfig(path)
	requireT.NoError(err)
	requireT.Equal(wire.FrameContextSidePanel, config.FrameContext)

	_, err = hostsim.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	requireT.Error(err)
}

func TestHostAnswersCalls(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	config, err := hostsim.ParseConfig([]byte(configYAML))
	requireT.NoError(err)

	appWindow, hostWindow := pipe.New("https://app.example.com", config.Origin)
	host := hostsim.New(config, hostsim.WindowConn(hostWindow, "https://app.example.com"))
	host.Handle("double", func(args []any) []any {
		return []any{nil, args[0].(float64) * 2}
	})
	group.Spawn("host", parallel.Fail, host.Run)

	post(requireT, appWindow, wire.NewRequest(0, wire.FuncInitialize, []any{"2.34.0", 4}))
	reply := receive(ctx, requireT, appWindow)
	requireT.EqualValues(0, *reply.ID)
	requireT.Len(reply.Args, 4)
	requireT.Equal("sidePanel", reply.Args[0])
	requireT.Equal("android", reply.Args[1])
	requireT.Equal("2.0.5", reply.Args[3])
	runtime, err := capability.Parse([]byte(reply.Args[2].(string)))
	requireT.NoError(err)
	requireT.Equal(*config.Runtime, runtime)

	post(requireT, appWindow, wire.NewRequest(1, wire.FuncRegisterHandler, []any{"themeChange"}))
	post(requireT, appWindow, wire.NewRequest(2, "double", []any{21}))
	reply = receive(ctx, requireT, appWindow)
	requireT.EqualValues(2, *reply.ID)
	requireT.Equal([]any{nil, float64(42)}, reply.Args)
	requireT.True(host.Registered("themeChange"))
	requireT.False(host.Registered("other"))

	post(requireT, appWindow, wire.NewRequest(3, "mail.composeMail", nil))
	reply = receive(ctx, requireT, appWindow)
	requireT.EqualValues(3, *reply.ID)
	requireT.Equal([]any{nil, true}, reply.Args)

	post(requireT, appWindow, wire.NewRequest(4, "unknown", nil))
	reply = receive(ctx, requireT, appWindow)
	requireT.EqualValues(4, *reply.ID)
	sdkErr, ok := wire.AsSdkError(reply.Arg(0))
	requireT.True(ok)
	requireT.Equal(wire.NotSupportedOnPlatform, sdkErr.ErrorCode)

	host.Silence("quiet")
	post(requireT, appWindow, wire.NewRequest(5, "quiet", nil))
	requireT.NoError(host.Emit("themeChange", "dark"))
	event := receive(ctx, requireT, appWindow)
	requireT.Nil(event.ID)
	requireT.Equal("themeChange", event.Func)
	requireT.Equal([]any{"dark"}, event.Args)

	for _, fn := range []string{wire.FuncInitialize, wire.FuncRegisterHandler, "double", "mail.composeMail", "unknown",
		"quiet"} {
		env := <-host.Received()
		requireT.Equal(fn, env.Func)
	}
}

func TestLegacyHandshakeReply(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	config := hostsim.DefaultConfig()
	config.LegacyReply = true

	appWindow, hostWindow := pipe.New("https://app.example.com", config.Origin)
	host := hostsim.New(config, hostsim.WindowConn(hostWindow, wire.AnyOrigin))
	group.Spawn("host", parallel.Fail, host.Run)

	post(requireT, appWindow, wire.NewRequest(0, wire.FuncInitialize, []any{"2.34.0", 4}))
	reply := receive(ctx, requireT, appWindow)
	requireT.Equal([]any{"content"}, reply.Args)
}

func TestHostKeepsAnsweringWithoutReader(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	config := hostsim.DefaultConfig()
	config.Results = map[string][]any{
		"ping": {nil, "pong"},
	}

	appWindow, hostWindow := pipe.New("https://app.example.com", config.Origin)
	host := hostsim.New(config, hostsim.WindowConn(hostWindow, "https://app.example.com"))
	group.Spawn("host", parallel.Fail, host.Run)

	const calls = 3000
	for i := range uint64(calls) {
		post(requireT, appWindow, wire.NewRequest(i, "ping", nil))
	}
	for i := range uint64(calls) {
		reply := receive(ctx, requireT, appWindow)
		requireT.Equal(i, *reply.ID)
		requireT.Equal([]any{nil, "pong"}, reply.Args)
	}
}

func post(requireT *require.Assertions, w *pipe.Window, env *wire.Envelope) {
	data, err := wire.Encode(env)
	requireT.NoError(err)
	requireT.NoError(w.PostMessage(data, wire.AnyOrigin))
}

func receive(ctx context.Context, requireT *require.Assertions, w *pipe.Window) *wire.Envelope {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := w.Receive(ctx)
	requireT.NoError(err)

	env, err := wire.Decode(msg.Data)
	requireT.NoError(err)
	return env
}
