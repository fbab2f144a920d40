package youtube

import "regexp"

var (
	channelIDRe = regexp.MustCompile(`youtube\.com/channel/([a-zA-Z0-9_-]+)`)
	videoIDRe   = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]+)`)
	handleRe    = regexp.MustCompile(`youtube\.com/@([a-zA-Z0-9_.-]+)`)
	customRe    = regexp.MustCompile(`youtube\.com/c/([a-zA-Z0-9_-]+)`)
	userRe      = regexp.MustCompile(`youtube\.com/user/([a-zA-Z0-9_-]+)`)
)

// ExtractChannelID pulls a channel ID out of a /channel/UC... URL.
// Returns "" when the URL is some other form.
func ExtractChannelID(url string) string {
	if m := channelIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// ExtractVideoID pulls a video ID out of a watch?v= or youtu.be URL.
func ExtractVideoID(url string) string {
	if m := videoIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// ExtractHandle pulls the name part out of @handle, /c/ and /user/ URLs.
// These forms cannot be resolved locally and go through search.
func ExtractHandle(url string) string {
	for _, re := range []*regexp.Regexp{handleRe, customRe, userRe} {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}
