package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/openwtv/internal/config"
	"github.com/jmylchreest/openwtv/internal/progress"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.ServerConfig
		title string
	}{
		{"valid", config.ServerConfig{Address: "tuner", Port: 7799, Password: "pw"}, ""},
		{"blank address", config.ServerConfig{Address: " ", Port: 7799, Password: "pw"}, titleInvalidAddress},
		{"bad port", config.ServerConfig{Address: "tuner", Port: 0, Password: "pw"}, titleInvalidPort},
		{"blank password", config.ServerConfig{Address: "tuner", Port: 7799}, titleInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServer(tt.cfg)
			if tt.title == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			title, _ := classify(err)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestClassify(t *testing.T) {
	resolveErr := fmt.Errorf("connecting to nowhere: %w",
		&extend.NetworkError{Op: "resolve", Err: errors.New("the address could not be found: no such host")})
	title, message := classify(resolveErr)
	assert.Equal(t, titleInvalidAddress, title)
	assert.Equal(t, "The address could not be found.", message)

	loginErr := &extend.ProtocolError{Method: "session.login", Stat: "fail", Msg: "request failed: fail"}
	title, message = classify(loginErr)
	assert.Equal(t, titleConnectionError, title)
	assert.Equal(t, "session.login: request failed: fail", message)
}

func TestFail(t *testing.T) {
	var out bytes.Buffer
	tracker := progress.NewTracker(&out, nil)

	assert.NoError(t, fail(tracker, nil))

	err := fail(tracker, &extend.NetworkError{Op: "fetch", StatusCode: 503})
	assert.True(t, reported(err))
	assert.ErrorIs(t, err, extend.ErrNetwork)
	assert.Equal(t, "Connection Error: fetch: unexpected HTTP status 503\n", out.String())

	assert.False(t, reported(errors.New("plain")))
}

func TestPrintChannels(t *testing.T) {
	var out bytes.Buffer
	printChannels(&out, []extend.ChannelEntry{
		{ChannelID: 101, Name: "News One", Number: 1},
		{ChannelID: 2050, Name: "Movies", Number: 42},
	})
	assert.Equal(t, "   1  News One  (101)\n  42  Movies  (2050)\n", out.String())

	out.Reset()
	printChannels(&out, nil)
	assert.Equal(t, "No channels.\n", out.String())
}

func TestDumpConfig_OmitsPassword(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Address: "tuner.local", Port: 7799, Password: "hunter2"},
		Transcode: config.TranscodeConfig{Resolution: "720p"},
	}

	var out bytes.Buffer
	require.NoError(t, dumpConfig(&out, cfg))
	assert.Contains(t, out.String(), "address: tuner.local")
	assert.Contains(t, out.String(), "port: 7799")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestResolutionNames(t *testing.T) {
	assert.Equal(t, []string{"720p", "1080p", "768p"}, resolutionNames())
}

const testChannelList = `<rsp stat="ok"><channels>
<channel><id>101</id><name>News One</name><number>1</number><type>0</type></channel>
<channel><id>102</id><name>Sport</name><number>2</number><type>0</type></channel>
</channels></rsp>`

// extendServer is a minimal Extend server for command tests. channel.list
// answers with channelList.
func extendServer(t *testing.T, channelList string) (host string, port int) {
	t.Helper()

	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("method") {
		case "session.initiate":
			fmt.Fprint(w, `<rsp stat="ok"><sid>S1</sid><salt>NaCl</salt></rsp>`)
		case "session.login":
			if q.Get("md5") != extend.DeriveToken("pw", "NaCl") {
				fmt.Fprint(w, `<rsp stat="fail"/>`)
				return
			}
			fmt.Fprint(w, `<rsp stat="ok"/>`)
		case "channel.list":
			fmt.Fprint(w, channelList)
		case "channel.transcode.status":
			if polls.Add(1) < 2 {
				fmt.Fprint(w, `<rsp stat="ok"><status>buffering</status><final>false</final><percentage>50</percentage></rsp>`)
				return
			}
			fmt.Fprint(w, `<rsp stat="ok"><status>ready</status><final>true</final><percentage>100</percentage></rsp>`)
		default:
			fmt.Fprint(w, `<rsp stat="ok"/>`)
		}
	}))
	t.Cleanup(server.Close)

	h, p, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENWTV_TRANSCODE_POLL_INTERVAL", "5ms")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_AgainstServer(t *testing.T) {
	host, port := extendServer(t, testChannelList)
	server := []string{"--address", host, "--port", strconv.Itoa(port), "--password", "pw", "--log-level", "error"}

	t.Run("login", func(t *testing.T) {
		out, err := execute(t, append([]string{"login"}, server...)...)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Logged in to http://%s:%d\n", host, port), out)
	})

	t.Run("channels", func(t *testing.T) {
		out, err := execute(t, append([]string{"channels"}, server...)...)
		require.NoError(t, err)
		assert.Equal(t, "   1  News One  (101)\n   2  Sport  (102)\n", out)
	})

	t.Run("play", func(t *testing.T) {
		out, err := execute(t, append([]string{"play", "101", "--resolution", "1080p"}, server...)...)
		require.NoError(t, err)
		assert.Equal(t,
			fmt.Sprintf("http://%s:%d/service/services/channelasync.m3u8?sid=S1&channel_id=101\n", host, port), out)
	})

	t.Run("resolution", func(t *testing.T) {
		out, err := execute(t, append([]string{"resolution", "768p"}, server...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Resolution set to 768p")
	})

	t.Run("wrong password", func(t *testing.T) {
		args := []string{"login", "--address", host, "--port", strconv.Itoa(port), "--password", "nope", "--log-level", "error"}
		_, err := execute(t, args...)
		require.Error(t, err)
		assert.True(t, reported(err))
		assert.ErrorIs(t, err, extend.ErrProtocol)
	})
}

func TestChannels_LegacyChannelParser(t *testing.T) {
	// The second channel has no <type> and inherits the first one's.
	host, port := extendServer(t, `<rsp stat="ok"><channels>
<channel><id>101</id><name>News One</name><number>1</number><type>3</type></channel>
<channel><id>102</id><name>Sport</name><number>2</number></channel>
</channels></rsp>`)
	args := []string{"channels", "--address", host, "--port", strconv.Itoa(port), "--password", "pw", "--log-level", "error"}

	t.Run("strict by default", func(t *testing.T) {
		_, err := execute(t, args...)
		require.Error(t, err)
		assert.ErrorIs(t, err, extend.ErrProtocol)
		assert.Contains(t, err.Error(), "channel entry missing type")
	})

	t.Run("legacy parser", func(t *testing.T) {
		t.Setenv("OPENWTV_TRANSCODE_LEGACY_CHANNEL_PARSER", "true")
		out, err := execute(t, args...)
		require.NoError(t, err)
		assert.Equal(t, "   1  News One  (101)\n   2  Sport  (102)\n", out)
	})
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("server:\n  address: tuner.local\nlogging:\n  level: trace\n"), 0o600))
	out, err := execute(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Equal(t, "Configuration is valid.\nServer: tuner.local:7799\n", out)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("transcode:\n  resolution: 4k\n"), 0o600))
	_, err = execute(t, "config", "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcode.resolution")

	_, err = execute(t, "config", "validate", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
