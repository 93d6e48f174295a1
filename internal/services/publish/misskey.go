package publish

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"

	"github.com/pkg/errors"
)

// Misskey posts notes with an attached drive file.
type Misskey struct {
	host   string
	token  string
	client *http.Client
}

// NewMisskey creates the channel for the instance at host.
func NewMisskey(host, token string, client *http.Client) *Misskey {
	return &Misskey{
		host:   normalizeBaseURL(host),
		token:  token,
		client: defaultHTTPClient(client),
	}
}

type misskeySession struct {
	userID string
}

func (m *Misskey) Name() string {
	return "misskey"
}

// Authenticate verifies the access token against /api/i.
func (m *Misskey) Authenticate(ctx context.Context) (Session, error) {
	if m.host == "" || m.token == "" {
		return nil, errors.New("misskey host and token are required")
	}

	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := postJSON(ctx, m.client, m.host+"/api/i", nil, map[string]string{"i": m.token}, &me); err != nil {
		return nil, errors.Wrap(err, "verify token")
	}
	if me.ID == "" {
		return nil, errors.New("misskey returned no account id")
	}

	return misskeySession{userID: me.ID}, nil
}

// UploadMedia stores the artifact in the drive and returns the file id.
func (m *Misskey) UploadMedia(ctx context.Context, _ Session, artifact Artifact) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("i", m.token); err != nil {
		return "", errors.Wrap(err, "write token field")
	}
	if err := w.WriteField("name", artifact.Filename); err != nil {
		return "", errors.Wrap(err, "write name field")
	}
	if artifact.AltText != "" {
		if err := w.WriteField("comment", artifact.AltText); err != nil {
			return "", errors.Wrap(err, "write comment field")
		}
	}
	part, err := w.CreateFormFile("file", artifact.Filename)
	if err != nil {
		return "", errors.Wrap(err, "create file part")
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return "", errors.Wrap(err, "write file part")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart body")
	}

	var file struct {
		ID string `json:"id"`
	}
	if err := send(ctx, m.client, http.MethodPost, m.host+"/api/drive/files/create", w.FormDataContentType(), nil, &body, &file); err != nil {
		return "", errors.Wrap(err, "upload drive file")
	}
	if file.ID == "" {
		return "", errors.New("misskey returned no file id")
	}

	return file.ID, nil
}

// CreatePost publishes a note referencing the uploaded file.
func (m *Misskey) CreatePost(ctx context.Context, _ Session, text, mediaRef string) (string, error) {
	payload := map[string]any{
		"i":    m.token,
		"text": text,
	}
	if mediaRef != "" {
		payload["fileIds"] = []string{mediaRef}
	}

	var resp struct {
		CreatedNote struct {
			ID string `json:"id"`
		} `json:"createdNote"`
	}
	if err := postJSON(ctx, m.client, m.host+"/api/notes/create", nil, payload, &resp); err != nil {
		return "", errors.Wrap(err, "create note")
	}

	return resp.CreatedNote.ID, nil
}
