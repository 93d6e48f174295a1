package domain

// PublishResult outcome of one channel publish attempt.
type PublishResult struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	PostID  string `json:"post_id,omitempty"`
	Err     error  `json:"-"`
}

// Error returns the error text, empty on success.
func (r PublishResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
