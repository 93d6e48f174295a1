package publish

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bluesky-social/indigo/xrpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, r *http.Request) map[string]any {
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestMisskey(t *testing.T) {
	var note map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/i":
			body := decodeJSON(t, r)
			if body["i"] != "token" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":{"code":"CREDENTIAL_REQUIRED"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"user1","username":"fgi"}`)
		case "/api/drive/files/create":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "token", r.FormValue("i"))
			f, header, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "png-bytes", string(data))
			assert.Equal(t, "FearGreed_Output.png", header.Filename)
			_, _ = io.WriteString(w, `{"id":"file1"}`)
		case "/api/notes/create":
			note = decodeJSON(t, r)
			_, _ = io.WriteString(w, `{"createdNote":{"id":"note1"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	m := NewMisskey(srv.URL, "token", srv.Client())
	assert.Equal(t, "misskey", m.Name())

	session, err := m.Authenticate(ctx)
	require.NoError(t, err)

	ref, err := m.UploadMedia(ctx, session, Artifact{Data: []byte("png-bytes"), Filename: "FearGreed_Output.png"})
	require.NoError(t, err)
	assert.Equal(t, "file1", ref)

	id, err := m.CreatePost(ctx, session, "hello", ref)
	require.NoError(t, err)
	assert.Equal(t, "note1", id)
	assert.Equal(t, "hello", note["text"])
	assert.Equal(t, []any{"file1"}, note["fileIds"])

	_, err = NewMisskey(srv.URL, "wrong", srv.Client()).Authenticate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	_, err = NewMisskey("", "", nil).Authenticate(ctx)
	assert.Error(t, err)
}

func TestTwitter(t *testing.T) {
	var tweet map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "), auth)
		assert.Contains(t, auth, `oauth_consumer_key="key"`)
		assert.Contains(t, auth, `oauth_token="token"`)

		switch r.URL.Path {
		case "/1.1/media/upload.json":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("media")
			require.NoError(t, err)
			_, _ = io.WriteString(w, `{"media_id":123,"media_id_string":"123"}`)
		case "/2/tweets":
			tweet = decodeJSON(t, r)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"data":{"id":"987","text":"hello"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	x := NewTwitter(TwitterCredentials{
		APIKey: "key", APISecret: "secret", AccessToken: "token", AccessSecret: "access",
	}, srv.URL, srv.URL, nil)
	assert.Equal(t, "x", x.Name())

	session, err := x.Authenticate(ctx)
	require.NoError(t, err)

	ref, err := x.UploadMedia(ctx, session, Artifact{Data: []byte("png"), Filename: "a.png"})
	require.NoError(t, err)
	assert.Equal(t, "123", ref)

	id, err := x.CreatePost(ctx, session, "hello", ref)
	require.NoError(t, err)
	assert.Equal(t, "987", id)
	assert.Equal(t, "hello", tweet["text"])
	assert.Equal(t, map[string]any{"media_ids": []any{"123"}}, tweet["media"])

	_, err = NewTwitter(TwitterCredentials{APIKey: "key"}, srv.URL, srv.URL, nil).Authenticate(ctx)
	assert.Error(t, err)

	_, err = x.UploadMedia(ctx, "not a client", Artifact{})
	assert.Error(t, err)
}

const testBlobCID = "bafkreibme22gw2h7y2h7tg2fhqotaqjucnbc24deqo72b6mkl2egezxhvy"

func TestBluesky(t *testing.T) {
	var record map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			body := decodeJSON(t, r)
			if body["password"] != "app-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
				return
			}
			assert.Equal(t, "fgi.bsky.social", body["identifier"])
			_, _ = io.WriteString(w, `{"did":"did:plc:abc","handle":"fgi.bsky.social","accessJwt":"jwt","refreshJwt":"r"}`)
		case "/xrpc/com.atproto.repo.uploadBlob":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			data, _ := io.ReadAll(r.Body)
			assert.Equal(t, "png", string(data))
			_, _ = io.WriteString(w, `{"blob":{"$type":"blob","ref":{"$link":"`+testBlobCID+`"},"mimeType":"image/png","size":3}}`)
		case "/xrpc/com.atproto.repo.createRecord":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			record = decodeJSON(t, r)
			_, _ = io.WriteString(w, `{"uri":"at://did:plc:abc/app.bsky.feed.post/3k","cid":"bafy"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	b := NewBluesky(srv.URL, "fgi.bsky.social", "app-pass", srv.Client())
	b.clock = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, "bluesky", b.Name())

	session, err := b.Authenticate(ctx)
	require.NoError(t, err)

	ref, err := b.UploadMedia(ctx, session, Artifact{Data: []byte("png"), MimeType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, testBlobCID, ref)

	id, err := b.CreatePost(ctx, session, "hello", ref)
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3k", id)

	assert.Equal(t, "did:plc:abc", record["repo"])
	assert.Equal(t, "app.bsky.feed.post", record["collection"])
	post := record["record"].(map[string]any)
	assert.Equal(t, "app.bsky.feed.post", post["$type"])
	assert.Equal(t, "hello", post["text"])
	assert.Equal(t, "2024-05-01T00:00:00Z", post["createdAt"])
	embed := post["embed"].(map[string]any)
	assert.Equal(t, "app.bsky.embed.images", embed["$type"])
	images := embed["images"].([]any)
	require.Len(t, images, 1)
	image := images[0].(map[string]any)
	assert.Equal(t, DefaultAltText, image["alt"])
	blob := image["image"].(map[string]any)
	assert.Equal(t, map[string]any{"$link": testBlobCID}, blob["ref"])
	assert.Equal(t, "image/png", blob["mimeType"])

	_, err = b.CreatePost(ctx, session, "hello", "bafkunknown")
	assert.Error(t, err)

	_, err = b.UploadMedia(ctx, "not a session", Artifact{})
	assert.Error(t, err)

	_, err = NewBluesky(srv.URL, "fgi.bsky.social", "wrong", srv.Client()).Authenticate(ctx)
	require.Error(t, err)
	var xerr *xrpc.Error
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, http.StatusUnauthorized, xerr.StatusCode)

	_, err = NewBluesky(srv.URL, "", "", nil).Authenticate(ctx)
	assert.Error(t, err)
}
