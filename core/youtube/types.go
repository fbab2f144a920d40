package youtube

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Count handles the Data API's habit of sending statistics as quoted
// strings ("viewCount": "12345").
type Count uint64

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	*c = Count(v)
	return nil
}

// Thumbnails carries only the default-size thumbnail; the dashboard never
// renders the larger variants.
type Thumbnails struct {
	Default struct {
		URL string `json:"url"`
	} `json:"default"`
}

// ChannelSnippet is the descriptive half of a channel resource.
type ChannelSnippet struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CustomURL   string     `json:"customUrl"`
	PublishedAt string     `json:"publishedAt"`
	Country     string     `json:"country"`
	Thumbnails  Thumbnails `json:"thumbnails"`
}

// ChannelStatistics is the counter half of a channel resource.
type ChannelStatistics struct {
	ViewCount             Count `json:"viewCount"`
	SubscriberCount       Count `json:"subscriberCount"`
	HiddenSubscriberCount bool  `json:"hiddenSubscriberCount"`
	VideoCount            Count `json:"videoCount"`
}

// Channel is a channels.list item.
type Channel struct {
	ID             string            `json:"id"`
	Snippet        ChannelSnippet    `json:"snippet"`
	Statistics     ChannelStatistics `json:"statistics"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

// VideoSnippet is the descriptive half of a video resource.
type VideoSnippet struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PublishedAt string     `json:"publishedAt"`
	ChannelID   string     `json:"channelId"`
	Thumbnails  Thumbnails `json:"thumbnails"`
}

// VideoStatistics is the counter half of a video resource.
type VideoStatistics struct {
	ViewCount    Count `json:"viewCount"`
	LikeCount    Count `json:"likeCount"`
	CommentCount Count `json:"commentCount"`
}

// Video is a videos.list item.
type Video struct {
	ID             string          `json:"id"`
	Snippet        VideoSnippet    `json:"snippet"`
	Statistics     VideoStatistics `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type channelListResponse struct {
	Items []Channel `json:"items"`
}

type videoListResponse struct {
	Items []Video `json:"items"`
}

type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}

// apiError is the Data API's error envelope.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func parseAPIError(body []byte) (apiError, bool) {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return e, false
	}
	return e, e.Error.Code != 0
}
