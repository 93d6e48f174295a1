package publish

import (
	"bytes"
	"context"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/pkg/errors"
)

const (
	DefaultBlueskyPDS = "https://bsky.social"
	DefaultAltText    = "Fear & Greed Index"

	feedPostCollection = "app.bsky.feed.post"
)

// Bluesky posts to an AT Protocol PDS over XRPC.
type Bluesky struct {
	pds      string
	handle   string
	password string
	client   *http.Client
	clock    func() time.Time
}

// NewBluesky creates the channel for the account handle using an app password.
func NewBluesky(pds, handle, appPassword string, client *http.Client) *Bluesky {
	if pds == "" {
		pds = DefaultBlueskyPDS
	}
	return &Bluesky{
		pds:      normalizeBaseURL(pds),
		handle:   handle,
		password: appPassword,
		client:   defaultHTTPClient(client),
		clock:    time.Now,
	}
}

// blueskySession authenticated XRPC client plus the blobs uploaded with it, keyed by CID.
type blueskySession struct {
	xrpc  *xrpc.Client
	did   string
	media map[string]blueskyMedia
}

type blueskyMedia struct {
	blob *lexutil.LexBlob
	alt  string
}

func (b *Bluesky) Name() string {
	return "bluesky"
}

func (b *Bluesky) session(s Session) (*blueskySession, error) {
	sess, ok := s.(*blueskySession)
	if !ok || sess == nil || sess.xrpc == nil || sess.xrpc.Auth == nil {
		return nil, errors.Errorf("unexpected bluesky session %T", s)
	}
	return sess, nil
}

func (b *Bluesky) Authenticate(ctx context.Context) (Session, error) {
	if b.handle == "" || b.password == "" {
		return nil, errors.New("bluesky handle and app password are required")
	}

	client := &xrpc.Client{Client: b.client, Host: b.pds}
	out, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: b.handle,
		Password:   b.password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	if out.AccessJwt == "" || out.Did == "" {
		return nil, errors.New("bluesky returned an incomplete session")
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}

	return &blueskySession{xrpc: client, did: out.Did, media: make(map[string]blueskyMedia)}, nil
}

// UploadMedia uploads the image blob and returns its CID as the media reference.
func (b *Bluesky) UploadMedia(ctx context.Context, s Session, artifact Artifact) (string, error) {
	sess, err := b.session(s)
	if err != nil {
		return "", err
	}

	out, err := comatproto.RepoUploadBlob(ctx, sess.xrpc, bytes.NewReader(artifact.Data))
	if err != nil {
		return "", errors.Wrap(err, "upload blob")
	}
	if out.Blob == nil {
		return "", errors.New("bluesky returned no blob reference")
	}

	ref := out.Blob.Ref.String()
	sess.media[ref] = blueskyMedia{blob: out.Blob, alt: artifact.AltText}

	return ref, nil
}

func (b *Bluesky) CreatePost(ctx context.Context, s Session, text, mediaRef string) (string, error) {
	sess, err := b.session(s)
	if err != nil {
		return "", err
	}

	post := &bsky.FeedPost{
		LexiconTypeID: feedPostCollection,
		Text:          text,
		CreatedAt:     b.clock().UTC().Format(time.RFC3339),
	}
	if mediaRef != "" {
		media, ok := sess.media[mediaRef]
		if !ok {
			return "", errors.Errorf("unknown bluesky blob %q", mediaRef)
		}
		alt := media.alt
		if alt == "" {
			alt = DefaultAltText
		}
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				LexiconTypeID: "app.bsky.embed.images",
				Images: []*bsky.EmbedImages_Image{
					{Alt: alt, Image: media.blob},
				},
			},
		}
	}

	out, err := comatproto.RepoCreateRecord(ctx, sess.xrpc, &comatproto.RepoCreateRecord_Input{
		Repo:       sess.did,
		Collection: feedPostCollection,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return "", errors.Wrap(err, "create record")
	}

	return out.Uri, nil
}
