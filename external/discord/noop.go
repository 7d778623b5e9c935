package discord

import (
	"context"

	discordpkg "github.com/foxseedlab/livescribe/internal/discord"
)

// NoopClient is used when no bot token is configured.
type NoopClient struct{}

func (NoopClient) Connect(context.Context) error                           { return nil }
func (NoopClient) Close() error                                            { return nil }
func (NoopClient) SendChannelMessage(string, string) error                 { return nil }
func (NoopClient) SendChannelMessageWithFile(discordpkg.FileMessage) error { return nil }
func (NoopClient) ChannelName(string) (string, error)                      { return "", nil }
