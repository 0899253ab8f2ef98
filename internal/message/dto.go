package message

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

const maxContentLength = 4000

var channelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,49}$`)

func channelValidator(v interface{}) *internal.AppError {
	s, _ := v.(string)
	if !channelPattern.MatchString(s) {
		return internal.NewValidationFieldError("channel",
			"channel must be 1-50 lowercase letters, digits, '_' or '-'", internal.ErrCodeValidationFailed)
	}
	return nil
}

// NormalizeChannel lowercases and defaults to general.
func NormalizeChannel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultChannel
	}
	return s
}

type CreateMessageDTO struct {
	Content string `json:"content"`
	Channel string `json:"channel"`
	ReplyTo *int64 `json:"replyTo"`
}

func (d *CreateMessageDTO) Validate() error {
	d.Content = strings.TrimSpace(d.Content)
	d.Channel = NormalizeChannel(d.Channel)
	return validation.NewValidator().
		Field("content", d.Content).Required().MaxLength(maxContentLength).
		Field("channel", d.Channel).Custom(channelValidator).
		Validate()
}

type UpdateMessageDTO struct {
	Content string `json:"content"`
}

func (d *UpdateMessageDTO) Validate() error {
	d.Content = strings.TrimSpace(d.Content)
	return validation.NewValidator().
		Field("content", d.Content).Required().MaxLength(maxContentLength).
		Validate()
}

type MessagesResponse struct {
	Channel  string     `json:"channel"`
	Messages []*Message `json:"messages"`
}

type ChannelsResponse struct {
	Channels []string `json:"channels"`
}
