package publish

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"
)

const (
	DefaultTwitterUploadURL = "https://upload.twitter.com"
	DefaultTwitterAPIURL    = "https://api.twitter.com"
)

// TwitterCredentials OAuth 1.0a user context keys.
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

func (c TwitterCredentials) complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// Twitter posts to X through the media upload and v2 tweet endpoints.
type Twitter struct {
	creds     TwitterCredentials
	uploadURL string
	apiURL    string
	base      *http.Client
}

// NewTwitter creates the channel. Empty URLs select the public endpoints.
func NewTwitter(creds TwitterCredentials, uploadURL, apiURL string, base *http.Client) *Twitter {
	if uploadURL == "" {
		uploadURL = DefaultTwitterUploadURL
	}
	if apiURL == "" {
		apiURL = DefaultTwitterAPIURL
	}
	return &Twitter{
		creds:     creds,
		uploadURL: normalizeBaseURL(uploadURL),
		apiURL:    normalizeBaseURL(apiURL),
		base:      defaultHTTPClient(base),
	}
}

func (t *Twitter) Name() string {
	return "x"
}

// Authenticate builds the signing client. OAuth1 needs no round trip, so only the
// presence of all four keys is checked here.
func (t *Twitter) Authenticate(ctx context.Context) (Session, error) {
	if !t.creds.complete() {
		return nil, errors.New("twitter api key, api secret, access token and access secret are required")
	}

	config := oauth1.NewConfig(t.creds.APIKey, t.creds.APISecret)
	token := oauth1.NewToken(t.creds.AccessToken, t.creds.AccessSecret)
	ctx = context.WithValue(ctx, oauth1.HTTPClient, t.base)

	client := config.Client(ctx, token)
	client.Timeout = t.base.Timeout
	return client, nil
}

func (t *Twitter) session(s Session) (*http.Client, error) {
	client, ok := s.(*http.Client)
	if !ok || client == nil {
		return nil, errors.Errorf("unexpected twitter session %T", s)
	}
	return client, nil
}

// UploadMedia sends the image to the media endpoint and returns media_id_string.
func (t *Twitter) UploadMedia(ctx context.Context, s Session, artifact Artifact) (string, error) {
	client, err := t.session(s)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("media", artifact.Filename)
	if err != nil {
		return "", errors.Wrap(err, "create media part")
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return "", errors.Wrap(err, "write media part")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart body")
	}

	var media struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := send(ctx, client, http.MethodPost, t.uploadURL+"/1.1/media/upload.json", w.FormDataContentType(), nil, &body, &media); err != nil {
		return "", errors.Wrap(err, "upload media")
	}
	if media.MediaIDString == "" {
		return "", errors.New("twitter returned no media id")
	}

	return media.MediaIDString, nil
}

// CreatePost publishes a tweet with the uploaded media.
func (t *Twitter) CreatePost(ctx context.Context, s Session, text, mediaRef string) (string, error) {
	client, err := t.session(s)
	if err != nil {
		return "", err
	}

	payload := map[string]any{"text": text}
	if mediaRef != "" {
		payload["media"] = map[string][]string{"media_ids": {mediaRef}}
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := postJSON(ctx, client, t.apiURL+"/2/tweets", nil, payload, &resp); err != nil {
		return "", errors.Wrap(err, "create tweet")
	}

	return resp.Data.ID, nil
}
