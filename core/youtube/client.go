package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"ytpulse/core"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Approximate quota units per call. list endpoints cost 1, search costs 100.
const (
	costList   = 1
	costSearch = 100
)

// ErrNotFound means the upstream API answered but the resource does not exist.
var ErrNotFound = errors.New("resource not found upstream")

// Client talks to the YouTube Data API v3 through the key-rotating gateway.
type Client struct {
	gateway *core.Gateway
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  *logrus.Logger
}

// NewClient builds a Data API client. requestsPerSec/burst pace outbound
// calls so a refresh sweep cannot hammer the upstream.
func NewClient(gw *core.Gateway, httpClient *http.Client, requestsPerSec float64, burst int, logger *logrus.Logger) *Client {
	return &Client{
		gateway: gw,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// do runs one API call through the gateway, charging cost units on success.
func (c *Client) do(ctx context.Context, cost uint64, path string, params url.Values, out any) error {
	return c.gateway.Do(ctx, cost, func(apiKey string) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		q.Set("key", apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			return classifyError(resp.StatusCode, body)
		}

		return json.NewDecoder(resp.Body).Decode(out)
	})
}

// classifyError turns an upstream error response into either a quota signal
// (which drives key rotation) or a plain error (which does not).
func classifyError(status int, body []byte) error {
	apiErr, ok := parseAPIError(body)
	if ok && status == http.StatusForbidden {
		for _, e := range apiErr.Error.Errors {
			switch e.Reason {
			case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded":
				return &core.QuotaError{
					Scope: core.QuotaShortTerm,
					Err:   fmt.Errorf("youtube api: %s", apiErr.Error.Message),
				}
			case "dailyLimitExceeded":
				return &core.QuotaError{
					Scope: core.QuotaDaily,
					Err:   fmt.Errorf("youtube api: %s", apiErr.Error.Message),
				}
			}
		}
	}
	if ok {
		return fmt.Errorf("youtube api: HTTP %d: %s", status, apiErr.Error.Message)
	}
	return fmt.Errorf("youtube api: HTTP %d", status)
}

// GetChannelByID fetches one channel with snippet, statistics and
// contentDetails. Returns ErrNotFound for unknown IDs.
func (c *Client) GetChannelByID(ctx context.Context, channelID string) (*Channel, error) {
	params := url.Values{
		"part": {"snippet,statistics,contentDetails"},
		"id":   {channelID},
	}

	var resp channelListResponse
	if err := c.do(ctx, costList, "/channels", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Items[0], nil
}

// GetVideoByID fetches one video. Returns ErrNotFound for unknown IDs.
func (c *Client) GetVideoByID(ctx context.Context, videoID string) (*Video, error) {
	videos, err := c.GetVideosByIDs(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, ErrNotFound
	}
	return &videos[0], nil
}

// GetVideosByIDs fetches up to 50 videos in one batched call.
func (c *Client) GetVideosByIDs(ctx context.Context, videoIDs []string) ([]Video, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	params := url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(videoIDs, ",")},
	}

	var resp videoListResponse
	if err := c.do(ctx, costList, "/videos", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetChannelVideos walks a channel's uploads playlist and returns up to
// maxResults videos with full details.
func (c *Client) GetChannelVideos(ctx context.Context, uploadsPlaylistID string, maxResults int) ([]Video, error) {
	var videos []Video
	pageToken := ""

	for len(videos) < maxResults {
		pageSize := maxResults - len(videos)
		if pageSize > 50 {
			pageSize = 50
		}

		params := url.Values{
			"part":       {"snippet,contentDetails"},
			"playlistId": {uploadsPlaylistID},
			"maxResults": {fmt.Sprintf("%d", pageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page playlistItemsResponse
		if err := c.do(ctx, costList, "/playlistItems", params, &page); err != nil {
			return videos, err
		}
		if len(page.Items) == 0 {
			break
		}

		ids := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			ids = append(ids, item.ContentDetails.VideoID)
		}

		details, err := c.GetVideosByIDs(ctx, ids)
		if err != nil {
			return videos, err
		}
		videos = append(videos, details...)

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return videos, nil
}

// SearchChannelID resolves a handle or username to a channel ID via
// search.list. This is the expensive path (100 units).
func (c *Client) SearchChannelID(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"type":       {"channel"},
		"maxResults": {"1"},
	}

	var resp searchListResponse
	if err := c.do(ctx, costSearch, "/search", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 || resp.Items[0].ID.ChannelID == "" {
		return "", ErrNotFound
	}
	return resp.Items[0].ID.ChannelID, nil
}

// GetChannelByURL resolves any supported YouTube URL to its channel:
// direct channel links first, then video links via the video's channel,
// then handle/custom/user forms via search.
func (c *Client) GetChannelByURL(ctx context.Context, rawURL string) (*Channel, error) {
	if channelID := ExtractChannelID(rawURL); channelID != "" {
		return c.GetChannelByID(ctx, channelID)
	}

	if videoID := ExtractVideoID(rawURL); videoID != "" {
		video, err := c.GetVideoByID(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if video.Snippet.ChannelID == "" {
			return nil, ErrNotFound
		}
		return c.GetChannelByID(ctx, video.Snippet.ChannelID)
	}

	if handle := ExtractHandle(rawURL); handle != "" {
		channelID, err := c.SearchChannelID(ctx, handle)
		if err != nil {
			return nil, err
		}
		return c.GetChannelByID(ctx, channelID)
	}

	return nil, fmt.Errorf("unrecognized YouTube URL: %s", rawURL)
}
