package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/space-queue-system/internal/engine"
)

// ytLinkPattern matches watch, short and embed style YouTube links and
// captures the 11-character video id.
var ytLinkPattern = regexp.MustCompile(`(?:youtube\.com\/(?:watch\?v=|embed\/|shorts\/)|youtu\.be\/)([A-Za-z0-9_-]{11})`)

const defaultOEmbedURL = "https://www.youtube.com/oembed"

// Client resolves submitted YouTube links into canonical track metadata via
// the public oEmbed endpoint.
type Client struct {
	oembedURL  string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		oembedURL:  defaultOEmbedURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithEndpoint exists for tests pointing at a fake oEmbed server.
func NewClientWithEndpoint(oembedURL string) *Client {
	c := NewClient()
	c.oembedURL = oembedURL
	return c
}

type oembedResponse struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ExtractID returns the video id embedded in ref, or an empty string if ref
// is not a recognized YouTube link.
func ExtractID(ref string) string {
	m := ytLinkPattern.FindStringSubmatch(ref)
	if m == nil {
		return ""
	}
	return m[1]
}

func (c *Client) Resolve(ctx context.Context, ref string) (*engine.ResolvedTrack, error) {
	videoID := ExtractID(ref)
	if videoID == "" {
		return nil, fmt.Errorf("not a youtube link: %q", ref)
	}

	params := url.Values{}
	params.Add("url", "https://www.youtube.com/watch?v="+videoID)
	params.Add("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", c.oembedURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: oembed request failed with status %d", resp.StatusCode)
	}

	var meta oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}

	small := meta.ThumbnailURL
	if small == "" {
		small = fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", videoID)
	}

	return &engine.ResolvedTrack{
		ExtractedID: videoID,
		Title:       meta.Title,
		SmallImg:    small,
		BigImg:      fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID),
	}, nil
}
