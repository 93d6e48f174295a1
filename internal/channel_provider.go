package internal

import (
	"net/http"

	"github.com/vadiminshakov/fgi/config"
	"github.com/vadiminshakov/fgi/internal/services/publish"
)

// newChannels builds the enabled channels in a fixed order. Each channel gets only
// its own credentials.
func newChannels(conf config.PublishConfig, client *http.Client) []publish.Channel {
	var channels []publish.Channel

	if conf.Misskey.Enabled {
		channels = append(channels, publish.NewMisskey(conf.Misskey.Host, conf.Misskey.Token, client))
	}
	if conf.Twitter.Enabled {
		channels = append(channels, publish.NewTwitter(conf.Twitter.Credentials, conf.Twitter.UploadURL, conf.Twitter.APIURL, client))
	}
	if conf.Bluesky.Enabled {
		channels = append(channels, publish.NewBluesky(conf.Bluesky.PDS, conf.Bluesky.Handle, conf.Bluesky.AppPassword, client))
	}

	return channels
}
