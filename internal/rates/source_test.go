package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/httpclient"
)

type fakeCreds struct {
	creds       Credentials
	err         error
	invalidated int
}

func (f *fakeCreds) Resolve(context.Context, string) (Credentials, error) { return f.creds, f.err }
func (f *fakeCreds) Invalidate(string) { f.invalidated++ }

func newSource(t *testing.T, h http.HandlerFunc) (*HTTPSource, *fakeCreds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	exec := httpclient.New(zap.NewNop(), nil, srv.Client(), 0, Upstream, ErrorHandler(zap.NewNop()))
	creds := &fakeCreds{creds: Credentials{APIKey: "k-123", BaseURL: srv.URL}}
	return NewHTTPSource(zap.NewNop(), exec, creds, "VND"), creds
}

func TestParseCredentials(t *testing.T) {
	c, err := ParseCredentials(map[string]string{"api_key": "k", "base_url": "https://rates.example/"})
	require.NoError(t, err)
	assert.Equal(t, "https://rates.example", c.BaseURL)

	_, err = ParseCredentials(map[string]string{"api_key": "k"})
	assert.Error(t, err)
}

func TestHTTPSource_FetchDecodesTable(t *testing.T) {
	src, _ := newSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rates", r.URL.Path)
		assert.Equal(t, "VND", r.URL.Query().Get("base"))
		assert.Equal(t, "k-123", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"base":"VND","rates":{
			"usd":{"rateToBase":25000,"updatedAt":"2026-10-01T00:00:00Z"},
			"CNY":{"rateToBase":"3500"},
			"XXX":{"rateToBase":0}}}`))
	})

	tbl, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CNY", "USD", "VND"}, tbl.Currencies())

	usd, ok := tbl.Lookup("USD")
	require.True(t, ok)
	assert.Equal(t, "25000", usd.RateToBase.String())
	assert.Equal(t, 2026, usd.UpdatedAt.Year())

	vnd, _ := tbl.Lookup("VND")
	assert.Equal(t, "1", vnd.RateToBase.String())
}

func TestHTTPSource_WrongBaseRejected(t *testing.T) {
	src, _ := newSource(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"VND":{"rateToBase":0.00004}}}`))
	})
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want VND")
}

func TestHTTPSource_UnauthorizedInvalidatesCredentials(t *testing.T) {
	src, creds := newSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	})
	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, creds.invalidated)
}

func TestHTTPSource_CredentialError(t *testing.T) {
	src, creds := newSource(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not be sent")
	})
	creds.err = errors.New("secret missing")
	_, err := src.Fetch(context.Background())
	assert.EqualError(t, err, "secret missing")
}

func TestHTTPSource_WithBook(t *testing.T) {
	src, _ := newSource(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"base":"VND","rates":{"USD":{"rateToBase":25000}}}`))
	})
	b := NewBook(zap.NewNop(), src)
	tbl, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}
