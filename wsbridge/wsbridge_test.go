package wsbridge_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/hostlink"
	"github.com/outofforest/hostlink/capability"
	"github.com/outofforest/hostlink/hostsim"
	"github.com/outofforest/hostlink/wire"
	"github.com/outofforest/hostlink/wsbridge"
	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
)

const (
	appOrigin  = "https://app.example.com"
	hostOrigin = "https://host.example.com"
)

func TestFramelessClientTalksToHost(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	hostConfig := hostsim.DefaultConfig()
	hostConfig.LegacyReply = true
	hostConfig.Results = map[string][]any{
		"getUser": {nil, map[string]any{"name": "alice"}},
	}

	hostCh := make(chan *hostsim.Host, 1)
	server := httptest.NewServer(wsbridge.NewHandler(ctx, []string{appOrigin},
		func(ctx context.Context, c *wsbridge.HostConn) error {
			host := hostsim.New(hostConfig, c)
			hostCh <- host
			return host.Run(ctx)
		}))
	defer server.Close()

	bridge, err := wsbridge.Dial(ctx, wsURL(server), appOrigin)
	requireT.NoError(err)
	group.Spawn("bridge", parallel.Fail, bridge.Run)

	client, err := hostlink.New(hostlink.Config{
		HostOrigin: hostOrigin,
	}, hostlink.NewFramelessTransport(bridge, hostOrigin))
	requireT.NoError(err)
	group.Spawn("client", parallel.Fail, client.Run)

	hostCtx, err := await(ctx, client.Initialize())
	requireT.NoError(err)
	requireT.Equal(wire.FrameContextContent, hostCtx.FrameContext)
	requireT.Equal(wire.HostClientWeb, hostCtx.HostClientType)
	requireT.Equal(capability.DefaultClientSDKVersion, hostCtx.ClientSDKVersion)

	type user struct {
		Name string `json:"name"`
	}

	f, err := hostlink.Call(client, "getUser", nil, hostlink.SimpleTypeResponseHandler[user]{})
	requireT.NoError(err)
	u, err := await(ctx, f)
	requireT.NoError(err)
	requireT.Equal(user{Name: "alice"}, u)

	var host *hostsim.Host
	select {
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	case host = <-hostCh:
	}

	eventCh := make(chan any, 1)
	requireT.NoError(client.RegisterHandler("themeChange", func(args []any) {
		eventCh <- args[0]
	}, hostlink.WithoutRegistrationMessage()))
	requireT.NoError(host.Emit("themeChange", "dark"))

	select {
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	case event := <-eventCh:
		requireT.Equal("dark", event)
	}
}

func TestLargeBacklogIsReplayed(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	hostConfig := hostsim.DefaultConfig()
	hostConfig.Results = map[string][]any{
		"getUser": {nil, "alice"},
	}

	hostCh := make(chan *hostsim.Host, 1)
	server := httptest.NewServer(wsbridge.NewHandler(ctx, nil,
		func(ctx context.Context, c *wsbridge.HostConn) error {
			host := hostsim.New(hostConfig, c)
			host.Silence(wire.FuncInitialize)
			hostCh <- host
			return host.Run(ctx)
		}))
	defer server.Close()

	bridge, err := wsbridge.Dial(ctx, wsURL(server), appOrigin)
	requireT.NoError(err)
	group.Spawn("bridge", parallel.Fail, bridge.Run)

	client, err := hostlink.New(hostlink.Config{
		HostOrigin: hostOrigin,
	}, hostlink.NewFramelessTransport(bridge, hostOrigin))
	requireT.NoError(err)
	group.Spawn("client", parallel.Fail, client.Run)

	var host *hostsim.Host
	select {
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	case host = <-hostCh:
	}

	initFuture := client.Initialize()

	const calls = 1000
	futures := make([]*hostlink.Future[string], 0, calls)
	for range calls {
		f, err := hostlink.Call(client, "getUser", nil, hostlink.SimpleTypeResponseHandler[string]{})
		requireT.NoError(err)
		futures = append(futures, f)
	}
	requireT.Equal(hostlink.StateHandshakeSent, client.State())

	var initEnv *wire.Envelope
	select {
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	case initEnv = <-host.Received():
	}
	requireT.Equal(wire.FuncInitialize, initEnv.Func)
	requireT.NoError(host.Reply(*initEnv.ID, []any{"content", "web"}, false))

	_, err = await(ctx, initFuture)
	requireT.NoError(err)

	for _, f := range futures {
		user, err := await(ctx, f)
		requireT.NoError(err)
		requireT.Equal("alice", user)
	}
}

func TestUnknownOriginIsRejected(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)

	server := httptest.NewServer(wsbridge.NewHandler(ctx, []string{appOrigin},
		func(ctx context.Context, c *wsbridge.HostConn) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	defer server.Close()

	_, err := wsbridge.Dial(ctx, wsURL(server), "https://evil.example.com")
	requireT.Error(err)

	_, err = wsbridge.Dial(ctx, wsURL(server), "")
	requireT.Error(err)
}

func TestHostConnWrapsEnvelopes(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	connCh := make(chan *wsbridge.HostConn, 1)
	server := httptest.NewServer(wsbridge.NewHandler(ctx, nil,
		func(ctx context.Context, c *wsbridge.HostConn) error {
			connCh <- c
			<-ctx.Done()
			return ctx.Err()
		}))
	defer server.Close()

	bridge, err := wsbridge.Dial(ctx, wsURL(server), "https://any.example.com")
	requireT.NoError(err)
	group.Spawn("bridge", parallel.Fail, bridge.Run)

	var conn *wsbridge.HostConn
	select {
	case <-time.After(5 * time.Second):
		requireT.Fail("timeout")
	case conn = <-connCh:
	}
	requireT.Equal("https://any.example.com", conn.Origin())

	requireT.NoError(bridge.FramelessPostMessage(`{"func":"ping","args":[]}`))
	receiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := conn.Receive(receiveCtx)
	requireT.NoError(err)
	requireT.JSONEq(`{"func":"ping","args":[]}`, string(data))

	requireT.NoError(conn.Send([]byte(`{"func":"pong","args":[]}`)))
	data, err = bridge.Receive(receiveCtx)
	requireT.NoError(err)
	requireT.JSONEq(`{"data":{"func":"pong","args":[]}}`, string(data))

	envelope, err := hostlink.UnwrapNativeMessage(data)
	requireT.NoError(err)
	requireT.JSONEq(`{"func":"pong","args":[]}`, string(envelope))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func await[T any](ctx context.Context, f *hostlink.Future[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return f.Wait(ctx)
}
