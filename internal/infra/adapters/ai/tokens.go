package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"local-chat-assistant/internal/domain/ports/adapter"
)

var _ adapter.TokenCounter = (*TiktokenCounter)(nil)

// TiktokenCounter counts tokens with a BPE encoding. Local models use their
// own tokenizers, so counts are estimates. The encoding may be downloaded on
// first use, so it is loaded in the background and ApproxTokens answers
// until it is ready, or for good when it cannot be loaded.
type TiktokenCounter struct {
	encoding string
	log      *zerolog.Logger
	loadEnc  func(string) (*tiktoken.Tiktoken, error)

	start sync.Once
	ready chan struct{}
	enc   atomic.Pointer[tiktoken.Tiktoken]
	err   error // set before ready is closed
}

func NewTokenCounter(encoding string, logger *zerolog.Logger) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{
		encoding: encoding,
		log:      logger,
		loadEnc:  tiktoken.GetEncoding,
		ready:    make(chan struct{}),
	}
}

// Warm starts loading the encoding and waits for it until ctx is done.
// Counting works either way; Warm only reports whether exact counts are
// available yet.
func (c *TiktokenCounter) Warm(ctx context.Context) error {
	c.load()
	select {
	case <-c.ready:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TiktokenCounter) Count(text string) int {
	c.load()
	if enc := c.enc.Load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return ApproxTokens(text)
}

func (c *TiktokenCounter) load() {
	c.start.Do(func() {
		go func() {
			defer close(c.ready)
			enc, err := c.loadEnc(c.encoding)
			if err != nil {
				c.err = err
				if c.log != nil {
					c.log.Warn().Err(err).Str("encoding", c.encoding).Msg("token encoding unavailable; using estimates")
				}
				return
			}
			c.enc.Store(enc)
		}()
	})
}

// ApproxTokens estimates one token per four characters.
func ApproxTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
