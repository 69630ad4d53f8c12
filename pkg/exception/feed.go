package exception

import "errors"

var (
	ErrFeedUnknownTopic    = errors.New("feed: unknown topic")
	ErrFeedMalformedUpdate = errors.New("feed: malformed depth update")
	ErrFeedSubscribeFailed = errors.New("feed: subscribe failed")
)
