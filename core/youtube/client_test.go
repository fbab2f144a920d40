package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytpulse/core"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClient(t *testing.T, handler http.Handler, keys ...string) (*Client, *core.KeyPool) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	pool, err := core.NewKeyPool(keys, testLogger())
	require.NoError(t, err)
	gw := core.NewGateway(pool, time.Hour, 24*time.Hour, testLogger())

	client := NewClient(gw, server.Client(), 1000, 1000, testLogger())
	client.SetBaseURL(server.URL)
	return client, pool
}

func quotaErrorBody(reason string) string {
	return `{"error":{"code":403,"message":"quota exceeded","errors":[{"reason":"` + reason + `"}]}}`
}

const channelBody = `{
	"items": [{
		"id": "UCtest",
		"snippet": {
			"title": "Test Channel",
			"description": "desc",
			"customUrl": "@testchannel",
			"publishedAt": "2020-01-02T03:04:05Z",
			"country": "US",
			"thumbnails": {"default": {"url": "https://i.ytimg.com/t.jpg"}}
		},
		"statistics": {
			"viewCount": "123456",
			"subscriberCount": "7890",
			"hiddenSubscriberCount": false,
			"videoCount": "42"
		},
		"contentDetails": {"relatedPlaylists": {"uploads": "UUtest"}}
	}]
}`

func TestGetChannelByID(t *testing.T) {
	var gotKey string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels", r.URL.Path)
		assert.Equal(t, "snippet,statistics,contentDetails", r.URL.Query().Get("part"))
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(channelBody))
	})

	client, pool := newTestClient(t, handler, "key-1")

	channel, err := client.GetChannelByID(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "UCtest", channel.ID)
	assert.Equal(t, "Test Channel", channel.Snippet.Title)
	assert.Equal(t, Count(123456), channel.Statistics.ViewCount)
	assert.Equal(t, "UUtest", channel.ContentDetails.RelatedPlaylists.Uploads)

	// One list call costs one quota unit.
	assert.Equal(t, uint64(1), pool.Snapshot()[0].QuotaUsed)
}

func TestGetChannelByIDNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	})

	client, _ := newTestClient(t, handler, "key-1")

	_, err := client.GetChannelByID(context.Background(), "UCnope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuotaErrorRotatesKeys(t *testing.T) {
	var keysSeen []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		keysSeen = append(keysSeen, key)
		if key == "key-1" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(quotaErrorBody("quotaExceeded")))
			return
		}
		w.Write([]byte(channelBody))
	})

	client, pool := newTestClient(t, handler, "key-1", "key-2")

	channel, err := client.GetChannelByID(context.Background(), "UCtest")
	require.NoError(t, err)
	assert.Equal(t, "UCtest", channel.ID)
	assert.Equal(t, []string{"key-1", "key-2"}, keysSeen)

	snapshot := pool.Snapshot()
	assert.True(t, snapshot[0].Disabled)
	assert.False(t, snapshot[1].Disabled)
}

func TestDailyLimitExhaustsAllKeys(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(quotaErrorBody("dailyLimitExceeded")))
	})

	client, pool := newTestClient(t, handler, "key-1", "key-2")

	_, err := client.GetChannelByID(context.Background(), "UCtest")
	assert.ErrorIs(t, err, core.ErrAllKeysExhausted)

	for _, ks := range pool.Snapshot() {
		assert.True(t, ks.Disabled)
	}
}

func TestNonQuotaErrorDoesNotRotate(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid id","errors":[{"reason":"invalidParameter"}]}}`))
	})

	client, pool := newTestClient(t, handler, "key-1", "key-2")

	_, err := client.GetChannelByID(context.Background(), "bad id")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrAllKeysExhausted)
	assert.Contains(t, err.Error(), "invalid id")
	assert.Equal(t, 1, calls)

	for _, ks := range pool.Snapshot() {
		assert.False(t, ks.Disabled)
	}
}

func TestClassifyErrorScopes(t *testing.T) {
	tests := []struct {
		reason string
		scope  core.QuotaScope
	}{
		{"quotaExceeded", core.QuotaShortTerm},
		{"rateLimitExceeded", core.QuotaShortTerm},
		{"userRateLimitExceeded", core.QuotaShortTerm},
		{"dailyLimitExceeded", core.QuotaDaily},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			err := classifyError(http.StatusForbidden, []byte(quotaErrorBody(tt.reason)))

			var qe *core.QuotaError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.scope, qe.Scope)
		})
	}

	// 403 without a quota reason is not a quota signal.
	err := classifyError(http.StatusForbidden, []byte(`{"error":{"code":403,"message":"forbidden","errors":[{"reason":"forbidden"}]}}`))
	var qe *core.QuotaError
	assert.False(t, errors.As(err, &qe))
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestGetChannelVideosPagination(t *testing.T) {
	page := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/playlistItems":
			assert.Equal(t, "UUtest", r.URL.Query().Get("playlistId"))
			if r.URL.Query().Get("pageToken") == "" {
				page = 1
				w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"vid1"}},{"contentDetails":{"videoId":"vid2"}}],"nextPageToken":"tok"}`))
			} else {
				page = 2
				w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"vid3"}}]}`))
			}
		case "/videos":
			ids := r.URL.Query().Get("id")
			if page == 1 {
				assert.Equal(t, "vid1,vid2", ids)
				w.Write([]byte(`{"items":[{"id":"vid1","statistics":{"viewCount":"10"}},{"id":"vid2","statistics":{"viewCount":"20"}}]}`))
			} else {
				assert.Equal(t, "vid3", ids)
				w.Write([]byte(`{"items":[{"id":"vid3","statistics":{"viewCount":"30"}}]}`))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	client, pool := newTestClient(t, handler, "key-1")

	videos, err := client.GetChannelVideos(context.Background(), "UUtest", 10)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "vid1", videos[0].ID)
	assert.Equal(t, Count(30), videos[2].Statistics.ViewCount)

	// Two playlist pages plus two batched video lookups, one unit each.
	assert.Equal(t, uint64(4), pool.Snapshot()[0].QuotaUsed)
}

func TestGetChannelByURLViaVideo(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos":
			w.Write([]byte(`{"items":[{"id":"dQw4w9WgXcQ","snippet":{"channelId":"UCtest"}}]}`))
		case "/channels":
			w.Write([]byte(channelBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	client, _ := newTestClient(t, handler, "key-1")

	channel, err := client.GetChannelByURL(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "UCtest", channel.ID)
}

func TestGetChannelByURLViaSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "testchannel", r.URL.Query().Get("q"))
			assert.Equal(t, "channel", r.URL.Query().Get("type"))
			w.Write([]byte(`{"items":[{"id":{"channelId":"UCtest"}}]}`))
		case "/channels":
			w.Write([]byte(channelBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	client, pool := newTestClient(t, handler, "key-1")

	channel, err := client.GetChannelByURL(context.Background(), "https://www.youtube.com/@testchannel")
	require.NoError(t, err)
	assert.Equal(t, "UCtest", channel.ID)

	// Search costs 100 units, the channel lookup 1.
	assert.Equal(t, uint64(101), pool.Snapshot()[0].QuotaUsed)
}

func TestGetChannelByURLUnrecognized(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), "key-1")

	_, err := client.GetChannelByURL(context.Background(), "https://example.com/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized")
}
