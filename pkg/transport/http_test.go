package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/softap-protocol/softap-go/internal/devicesim"
	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTP(t *testing.T, baseURL string, timeout time.Duration, plog log.Logger) *HTTPTransport {
	t.Helper()
	cfg := DefaultHTTPConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = timeout
	cfg.ProtocolLogger = plog
	tr, err := NewHTTPTransport(cfg)
	require.NoError(t, err)
	return tr
}

func TestHTTPGetWithoutBody(t *testing.T) {
	var gotMethod, gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		w.Write([]byte(`{"scans":[]}`))
	}))
	defer srv.Close()

	tr := newHTTP(t, srv.URL, time.Second, nil)
	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/scan-ap", gotPath)
	assert.Empty(t, gotType)
	assert.True(t, resp.Has("scans"))
}

func TestHTTPPostWithBody(t *testing.T) {
	var gotMethod, gotType string
	var gotBody []byte
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotType, gotLen = r.Method, r.Header.Get("Content-Type"), r.ContentLength
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"r":0}`))
	}))
	defer srv.Close()

	cmd := wire.MustCommand(wire.CmdConfigureAP, map[string]string{"ssid": "Café"})
	tr := newHTTP(t, srv.URL, time.Second, nil)
	_, err := tr.Send(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, wire.FormContentType, gotType)
	assert.Equal(t, int64(cmd.BodyLen()), gotLen)
	assert.Equal(t, cmd.Body(), gotBody)
}

func TestHTTPAgainstSimulatedDevice(t *testing.T) {
	d, err := devicesim.NewDevice("ABCDEF0123456789")
	require.NoError(t, err)
	srv := httptest.NewServer(d.HTTPHandler())
	defer srv.Close()

	tr := newHTTP(t, srv.URL, time.Second, nil)
	_, err = tr.Send(context.Background(), wire.MustCommand(wire.CmdSet, map[string]string{"k": "cc", "v": "z"}))
	require.NoError(t, err)

	assert.Equal(t, []string{wire.CmdSet}, d.ReceivedNames(), "no warm-up over HTTP")
}

func TestHTTPMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"r":0,`))
	}))
	defer srv.Close()

	rec := &recordingLogger{}
	tr := newHTTP(t, srv.URL, time.Second, rec)
	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))

	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrTransport))

	var kinds []string
	for _, e := range rec.all() {
		if e.Error != nil {
			kinds = append(kinds, e.Error.Kind)
		}
	}
	assert.Equal(t, []string{"invalid_response"}, kinds)
}

func TestHTTPStatusCodeIsNotInterpreted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"r":-1}`))
	}))
	defer srv.Close()

	tr := newHTTP(t, srv.URL, time.Second, nil)
	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))
	require.NoError(t, err)
	assert.ErrorIs(t, resp.RequireOK(), wire.ErrNonZeroCode)
}

func TestHTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := newHTTP(t, srv.URL, 150*time.Millisecond, nil)
	start := time.Now()
	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := newHTTP(t, "http://"+addr, time.Second, nil)
	_, err = tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))

	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrInvalidResponse))
}

func TestNewHTTPTransportValidation(t *testing.T) {
	_, err := NewHTTPTransport(HTTPConfig{BaseURL: "ftp://192.168.0.1"})
	assert.Error(t, err)

	_, err = NewHTTPTransport(HTTPConfig{BaseURL: "http://"})
	assert.Error(t, err)

	tr, err := NewHTTPTransport(HTTPConfig{BaseURL: "http://192.168.0.1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, tr.config.Timeout)
	assert.Equal(t, KindHTTP, tr.Kind())
}
