package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dissemin/urltheory/classify"
)

func responseWithBody(body string) *classify.Response {
	return &classify.Response{Body: []byte(body)}
}

func TestFetch_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("%PDF-1.4 hello"))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF-1.4 hello", string(resp.Body))
	assert.Empty(t, resp.Redirect)
}

func TestFetch_ReportsRedirectWithoutFollowing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/somewhere-else")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 2 * time.Second})
	resp, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/somewhere-else", resp.Redirect)
	assert.Empty(t, resp.Body)
}

func TestFetch_RateLimiterSharedPerHost(t *testing.T) {
	c := New(Config{RequestsPerSecond: 5, Burst: 1})
	a := c.limiterFor("example.org")
	b := c.limiterFor("example.org")
	assert.Same(t, a, b)

	other := c.limiterFor("example.net")
	assert.NotSame(t, a, other)
}

func TestFetch_UnlimitedWhenRateIsZero(t *testing.T) {
	c := New(Config{})
	assert.Nil(t, c.limiterFor("example.org"))
}

func TestMagicByteClassifier_RecognizesPDF(t *testing.T) {
	cls := NewMagicByteClassifier()
	p, ok := cls.PredictAfterFetch(responseWithBody("%PDF-1.7 ..."), "example.org/x", nil, 0.1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, p)
}

func TestMagicByteClassifier_RejectsPlainHTML(t *testing.T) {
	cls := NewMagicByteClassifier()
	_, ok := cls.PredictAfterFetch(responseWithBody("<html></html>"), "example.org/x", nil, 0.1)
	assert.False(t, ok)
}

func TestAlternateLinkClassifier_RecognizesAlternateTag(t *testing.T) {
	cls := AlternateLinkClassifier{}
	body := `<html><head><link rel="alternate" type="application/pdf" href="/a.pdf"></head></html>`
	p, ok := cls.PredictAfterFetch(responseWithBody(body), "example.org/x", nil, 0.1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, p)
}

func TestAlternateLinkClassifier_AttributeOrderIndependent(t *testing.T) {
	cls := AlternateLinkClassifier{}
	body := `<link type="application/pdf" rel="alternate" href="/a.pdf">`
	_, ok := cls.PredictAfterFetch(responseWithBody(body), "example.org/x", nil, 0.1)
	assert.True(t, ok)
}

func TestAlternateLinkClassifier_RejectsUnrelatedPage(t *testing.T) {
	cls := AlternateLinkClassifier{}
	_, ok := cls.PredictAfterFetch(responseWithBody("<html><body>hi</body></html>"), "example.org/x", nil, 0.1)
	assert.False(t, ok)
}
