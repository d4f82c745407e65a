package api

//go:generate mockgen -destination=mock_roundtripper_test.go -package=api net/http RoundTripper

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func stubResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGET_SendsDefaultHeaders(t *testing.T) {
	t.Parallel()

	// Arrange: a mock transport that checks the outgoing request
	ctrl := gomock.NewController(t)
	rt := NewMockRoundTripper(ctrl)
	rt.EXPECT().
		RoundTrip(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "test-agent", req.Header.Get("User-Agent"))
			require.Equal(t, "*/*", req.Header.Get("Accept"))
			require.Equal(t, "1", req.Header.Get("X-Extra"))
			require.Equal(t, "http://upstream.test/data.csv", req.URL.String())
			return stubResponse(http.StatusOK, "ok"), nil
		}).
		Times(1)

	client := NewClient(
		WithTransport(rt),
		WithBaseURL("http://upstream.test"),
		WithHeaders(map[string]string{"User-Agent": "test-agent", "Accept": "*/*"}),
	)

	// Act
	resp, err := client.GET(t.Context(), "/data.csv", map[string]string{"X-Extra": "1"})

	// Assert
	require.NoError(t, err)
	require.True(t, resp.IsSuccess())
	require.Equal(t, "ok", resp.String())
}

func TestGET_NonSuccessStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := NewMockRoundTripper(ctrl)
	rt.EXPECT().RoundTrip(gomock.Any()).Return(stubResponse(http.StatusServiceUnavailable, "busy"), nil)

	client := NewClient(WithTransport(rt))
	resp, err := client.GET(t.Context(), "http://upstream.test/")

	require.NoError(t, err)
	require.False(t, resp.IsSuccess())
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGET_TransportErrorIsReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rt := NewMockRoundTripper(ctrl)
	rt.EXPECT().RoundTrip(gomock.Any()).Return(nil, errors.New("connection reset"))

	client := NewClient(WithTransport(rt))
	_, err := client.GET(t.Context(), "http://upstream.test/")

	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
}

func TestCookiesAreIsolatedPerClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	first := NewClient()
	second := NewClient()

	_, err := first.GET(t.Context(), srv.URL+"/")
	require.NoError(t, err)

	require.Len(t, first.Cookies(srv.URL), 1)
	require.Empty(t, second.Cookies(srv.URL))
}

func TestDecompressMiddleware_Brotli(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("SYMBOL,SERIES\nABC,EQ\n"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp, err := NewClient(WithHeader("Accept-Encoding", "br")).GET(t.Context(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "SYMBOL,SERIES\nABC,EQ\n", resp.String())
}

func TestGET_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewClient(WithTimeout(50*time.Millisecond)).GET(t.Context(), srv.URL)
	require.Error(t, err)
}
