// bus.go
package bus

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is a single element in a topic path. Any comparable value is allowed;
// in practice services use strings and small integers.
type Token = any

// Topic is a sequence of tokens.
type Topic []Token

func (t Topic) Len() int       { return len(t) }
func (t Topic) At(i int) Token { return t[i] }

// T builds a topic from tokens. It panics if a token is not comparable,
// since such a token could never be matched or stored in the trie.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token must be comparable")
		}
	}
	return Topic(tokens)
}

// Default wildcard tokens (MQTT-style).
const (
	WildcardOne = "+" // matches exactly one token
	WildcardAll = "#" // matches zero or more trailing tokens
)

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic  Topic
	ch     chan *Message
	bus    *Bus
	conn   *Connection // owning connection
	closed bool        // guarded by bus.mu
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.RWMutex
	root  *node
	qLen  int
	wcOne Token
	wcAll Token

	reqSeq uint32 // reply-topic uniquifier
}

// NewBus creates a bus with the given subscription queue length. The optional
// wildcard pair overrides the "+" / "#" defaults (some deployments reserve
// those characters for payload addressing).
func NewBus(queueLen int, wildcards ...string) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	b := &Bus{
		root:  &node{},
		qLen:  queueLen,
		wcOne: WildcardOne,
		wcAll: WildcardAll,
	}
	if len(wildcards) >= 2 {
		b.wcOne = wildcards[0]
		b.wcAll = wildcards[1]
	}
	return b
}

// addSubscription inserts a subscription into the trie. Wildcard tokens are
// stored literally; matching resolves them at publish time.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[Token]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	// Deliver retained messages matching the pattern. Sends are non-blocking,
	// so delivery happens under the lock; a closed channel is never reachable.
	var retained []*Message
	b.gatherRetained(b.root, topic, 0, &retained)
	for _, m := range retained {
		select {
		case sub.ch <- m:
		default:
		}
	}
	b.mu.Unlock()
}

// gatherRetained collects retained messages stored at nodes matched by the
// subscription pattern pat[idx:], rooted at n.
func (b *Bus) gatherRetained(n *node, pat Topic, idx int, out *[]*Message) {
	if n == nil {
		return
	}
	if idx == len(pat) {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	tok := pat[idx]
	switch tok {
	case b.wcAll:
		// Matches this node and every descendant.
		b.gatherSubtree(n, out)
	case b.wcOne:
		for _, child := range n.children {
			b.gatherRetained(child, pat, idx+1, out)
		}
	default:
		b.gatherRetained(n.children[tok], pat, idx+1, out)
	}
}

func (b *Bus) gatherSubtree(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, child := range n.children {
		b.gatherSubtree(child, out)
	}
}

// Publish delivers a message to every subscription whose pattern matches the
// message topic, and stores/clears the retained copy at the exact topic node.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()

	var targets []*Subscription
	b.match(b.root, msg.Topic, 0, &targets)

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			if n.children == nil {
				n.children = make(map[Token]*node)
			}
			child, ok := n.children[tok]
			if !ok {
				child = &node{}
				n.children[tok] = child
			}
			n = child
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
			// drop oldest if queue full
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	b.mu.Unlock()
}

// match walks the trie against a concrete topic, honouring wildcard edges.
func (b *Bus) match(n *node, topic Topic, idx int, out *[]*Subscription) {
	if n == nil {
		return
	}
	// "#" at this level matches the remainder, including the empty remainder.
	if n.children != nil {
		if all, ok := n.children[b.wcAll]; ok {
			*out = append(*out, all.subs...)
		}
	}
	if idx == len(topic) {
		*out = append(*out, n.subs...)
		return
	}
	if n.children == nil {
		return
	}
	b.match(n.children[topic[idx]], topic, idx+1, out)
	b.match(n.children[b.wcOne], topic, idx+1, out)
}

// unsubscribe removes a subscription from the trie, closes its channel, and
// prunes empty nodes. The close happens under the lock so Publish can never
// send on a closed channel.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}()

	n := b.root
	var stack []*node
	for _, t := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[t]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

var ErrNoReply = errors.New("bus: request cancelled before reply")

// Request stamps the message with a unique ReplyTo topic, subscribes to it,
// and publishes the request. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	seq := atomic.AddUint32(&c.bus.reqSeq, 1)
	msg.ReplyTo = Topic{"_reply", c.id, int(seq)}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait performs Request and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case reply, ok := <-sub.ch:
		if !ok {
			return nil, ErrNoReply
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes a response on the request's ReplyTo topic, if present.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
