package transport

import "sync"

// completion publishes the single terminal Result of a call. Every event
// source (data, close, error, timer, context) calls resolve; the first one
// wins and later ones are dropped.
type completion struct {
	once sync.Once
	ch   chan Result
}

func newCompletion() *completion {
	return &completion{ch: make(chan Result, 1)}
}

// resolve publishes r unless a result was already published. It reports
// whether r was the winning result.
func (c *completion) resolve(r Result) bool {
	won := false
	c.once.Do(func() {
		c.ch <- r
		won = true
	})
	return won
}

// wait returns the channel carrying the result.
func (c *completion) wait() <-chan Result {
	return c.ch
}
