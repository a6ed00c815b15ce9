package simulator

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/hl7"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/template"
)

func testGenerator(opts ...generator.Option) *generator.Generator {
	tpl := template.Builtins().Get(template.TypeHematology)
	return generator.New(tpl, opts...)
}

func TestPushRun_Summary(t *testing.T) {
	var attempt int
	pusher := PushFunc(func(_ context.Context, _ *generator.Report) error {
		attempt++
		if attempt%2 == 0 {
			return errors.New("refused")
		}
		return nil
	})

	run := &PushRun{
		Generator:    testGenerator(),
		Pusher:       pusher,
		AnalyzerType: "HEMATOLOGY",
		Count:        4,
	}

	summary := run.Run(context.Background())

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Results, 4)

	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[1].Success)
	assert.Equal(t, "refused", summary.Results[1].Error)
	assert.Equal(t, 2, summary.Results[1].MessageNumber)
}

func TestPushRun_DefaultsToOneAttempt(t *testing.T) {
	var count int
	run := &PushRun{
		Generator: testGenerator(),
		Pusher: PushFunc(func(context.Context, *generator.Report) error {
			count++
			return nil
		}),
	}

	summary := run.Run(context.Background())
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, count)
}

func TestPushRun_ContextCancelStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	run := &PushRun{
		Generator: testGenerator(),
		Pusher: PushFunc(func(context.Context, *generator.Report) error {
			cancel()
			return nil
		}),
		Count:    100,
		Interval: 10 * time.Millisecond,
	}

	summary := run.Run(ctx)
	assert.Equal(t, 1, summary.Total)
}

func TestPushRun_Continuous(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var count int
	run := &PushRun{
		Generator: testGenerator(),
		Pusher: PushFunc(func(context.Context, *generator.Report) error {
			count++
			if count == 3 {
				cancel()
			}
			return nil
		}),
		Continuous: true,
	}

	summary := run.Run(ctx)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Successful)
	assert.Nil(t, summary.Results, "continuous mode accumulates no per-attempt results")
}

func TestLinkPusher_DeliversToServer(t *testing.T) {
	received := make(chan *astm.Message, 1)
	srv := newTestServer(t, WithMessageHandler(func(msg *astm.Message) {
		received <- msg
	}))

	cfg, err := lis1.NewSessionConfig(fastSessionOpts()...)
	require.NoError(t, err)

	pusher, err := NewLinkPusher(srv.Addr(), cfg)
	require.NoError(t, err)

	rep := testGenerator(generator.WithDeterministic(), generator.WithSampleID("SAMPLE-042")).Report()
	require.NoError(t, pusher.Push(context.Background(), rep))

	select {
	case msg := <-received:
		require.Equal(t, 9, msg.Len())
		lines := msg.Lines()
		assert.Contains(t, lines[0], "Sysmex^XN-1000^V1.0")
		assert.Contains(t, lines[2], "SAMPLE-042^LAB")
		assert.Equal(t, "L|1|N", lines[8])
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the pushed message")
	}
}

func TestLinkPusher_DialFailure(t *testing.T) {
	pusher, err := NewLinkPusher("127.0.0.1:1", nil)
	require.NoError(t, err)
	pusher.dialTimeout = 500 * time.Millisecond

	err = pusher.Push(context.Background(), testGenerator().Report())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}

func TestBridgeClient_Deliver(t *testing.T) {
	type capture struct {
		path        string
		contentType string
		body        string
	}
	got := make(chan capture, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- capture{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewBridgeClient(ts.URL)
	rep := testGenerator(generator.WithDeterministic()).Report()
	require.NoError(t, client.Deliver(context.Background(), bridgeText(rep.Message())))

	select {
	case c := <-got:
		assert.Equal(t, "/api/OpenELIS-Global/analyzer/astm", c.path)
		assert.Equal(t, "text/plain; charset=utf-8", c.contentType)
		assert.True(t, strings.HasPrefix(c.body, "H|\\^&|||Sysmex^XN-1000^V1.0"))
		assert.True(t, strings.HasSuffix(c.body, "L|1|N\n"))
		assert.Len(t, strings.Split(strings.TrimSuffix(c.body, "\n"), "\n"), 9)
	case <-time.After(time.Second):
		t.Fatal("bridge never received the delivery")
	}
}

func TestBridgeClient_RejectsNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "analyzer not registered", http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewBridgeClient(ts.URL)
	err := client.Deliver(context.Background(), "H|\\^&\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "analyzer not registered")
}

func TestBridgeClient_InsecureTLS(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// The self-signed certificate fails verification by default.
	strict := NewBridgeClient(ts.URL)
	require.Error(t, strict.Deliver(context.Background(), "H|\\^&\n"))

	insecure := NewBridgeClient(ts.URL, WithInsecureTLS())
	require.NoError(t, insecure.Deliver(context.Background(), "H|\\^&\n"))
}

func TestMLLPPusher(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	payloads := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var data []byte
		buf := make([]byte, 4096)
		for !strings.HasSuffix(string(data), "\x1c\r") {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			data = append(data, buf[:n]...)
		}
		payloads <- string(data)
	}()

	client := hl7.NewClient(ln.Addr().String(), hl7.WithAckTimeout(0))
	pusher := NewMLLPPusher(client)

	rep := testGenerator(generator.WithDeterministic()).Report()
	require.NoError(t, pusher.Push(context.Background(), rep))

	select {
	case payload := <-payloads:
		require.True(t, strings.HasPrefix(payload, "\x0b"), "missing MLLP start block")
		require.True(t, strings.HasSuffix(payload, "\x1c\r"), "missing MLLP end block")
		assert.Contains(t, payload, "MSH|^~\\&|SYSMEX|HEMATOLOGY|OpenELIS|LAB|")
		assert.Contains(t, payload, "ORU^R01")
	case <-time.After(time.Second):
		t.Fatal("listener never received the MLLP payload")
	}
}

func TestBridgePusher(t *testing.T) {
	bodies := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	pusher := NewBridgePusher(NewBridgeClient(ts.URL))
	require.NoError(t, pusher.Push(context.Background(), testGenerator().Report()))

	select {
	case body := <-bodies:
		assert.True(t, strings.HasPrefix(body, "H|"))
	case <-time.After(time.Second):
		t.Fatal("bridge never received the push")
	}
}
