package permissions

import (
	"sync"
	"time"

	"jotlet/models"
)

type checkKind uint8

const (
	checkModerator checkKind = iota
	checkOwnerOrStaff
	checkPostVisible
	checkPostUpdate
	checkPostDelete
	checkReact
)

type memoKey struct {
	kind checkKind
	id   int64
}

// Checker memoizes decisions for one viewer over one request. Results are
// keyed by entity id, so a Checker must not outlive the request that made
// it or see entities change underneath it.
type Checker struct {
	viewer models.Viewer

	mu   sync.Mutex
	memo map[memoKey]bool
}

func NewChecker(v models.Viewer) *Checker {
	return &Checker{viewer: v, memo: make(map[memoKey]bool)}
}

func (c *Checker) Viewer() models.Viewer { return c.viewer }

func (c *Checker) remember(kind checkKind, id int64, decide func() bool) bool {
	k := memoKey{kind, id}
	c.mu.Lock()
	if v, ok := c.memo[k]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	v := decide()

	c.mu.Lock()
	c.memo[k] = v
	c.mu.Unlock()
	return v
}

func (c *Checker) IsModerator(b *models.Board) bool {
	return c.remember(checkModerator, b.ID, func() bool { return IsModerator(c.viewer, b) })
}

func (c *Checker) IsOwnerOrStaff(b *models.Board) bool {
	return c.remember(checkOwnerOrStaff, b.ID, func() bool { return IsOwnerOrStaff(c.viewer, b) })
}

func (c *Checker) IsPostAuthor(p *models.Post) bool {
	return IsPostAuthor(c.viewer, p)
}

func (c *Checker) PostIsVisible(b *models.Board, p *models.Post) bool {
	return c.remember(checkPostVisible, p.ID, func() bool {
		return p.Approved || IsPostAuthor(c.viewer, p) || c.IsModerator(b)
	})
}

func (c *Checker) PostUpdateAllowed(b *models.Board, t *models.Topic, p *models.Post) bool {
	return c.remember(checkPostUpdate, p.ID, func() bool { return PostUpdateAllowed(c.viewer, b, t, p) })
}

func (c *Checker) PostDeleteAllowed(b *models.Board, t *models.Topic, p *models.Post) bool {
	return c.remember(checkPostDelete, p.ID, func() bool { return PostDeleteAllowed(c.viewer, b, t, p) })
}

func (c *Checker) ReactAllowed(b *models.Board, p *models.Post) bool {
	return c.remember(checkReact, p.ID, func() bool { return ReactAllowed(c.viewer, b, p) })
}

func (c *Checker) ReplyCreateAllowed(b *models.Board, parent *models.Post) bool {
	return ReplyCreateAllowed(c.viewer, b, parent)
}

func (c *Checker) PostCreateAllowed(b *models.Board, t *models.Topic, now time.Time) bool {
	return PostCreateAllowed(c.viewer, b, t, now)
}

func (c *Checker) ApprovalToggleAllowed(b *models.Board) bool {
	return ApprovalToggleAllowed(c.viewer, b)
}

func (c *Checker) TopicLockAllowed(b *models.Board) bool {
	return TopicLockAllowed(c.viewer, b)
}

func (c *Checker) BoardLockAllowed(b *models.Board) bool {
	return BoardLockAllowed(c.viewer, b)
}

// Evaluations reports how many distinct decisions have been computed.
func (c *Checker) Evaluations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.memo)
}
