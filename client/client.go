// Package client is a pooled client for the lilykv server.
package client

import (
	"bufio"
	"net"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store"

	log "github.com/marcybelardo/lilykv/logger"
)

type Client interface {
	// Do sends a command and returns the reply. An Error reply is
	// returned as the error.
	Do(args ...string) (proto.Value, error)
	Ping() error
	Get(key string) (val []byte, err error)
	Set(key string, val []byte, ttl time.Duration) error
	Update(key string, val []byte, ttl time.Duration) error
	Remove(key string) error
	Keys() ([]string, error)
	Close() error
}

var (
	// ErrTerminated is returned by calls on a closed client.
	ErrTerminated = errors.New("terminated")
	// ErrUnexpectedReply is returned when a reply has the wrong type.
	ErrUnexpectedReply = errors.New("unexpected reply")
	// ErrNotFound is the reply for missing or expired keys.
	ErrNotFound error = proto.ErrorReply(store.ErrNotFound)
)

const defaultTimeout = 5 * time.Second

func New(addr string, poolSize int) (Client, error) {
	if poolSize <= 0 {
		poolSize = 1
	}

	c := &client{
		addr:     addr,
		poolSize: poolSize,
		connPool: make(chan *conn, poolSize),
		closing:  make(chan struct{}),
	}

	for i := 0; i < poolSize; i++ {
		cn, err := makeConn(addr)
		if err != nil {
			for j := 0; j < i; j++ {
				(<-c.connPool).Close()
			}
			return nil, err
		}

		c.connPool <- cn
	}

	return c, nil
}

type conn struct {
	net.Conn
	scanner *bufio.Scanner
	broken  bool
}

func makeConn(addr string) (*conn, error) {
	nc, err := net.DialTimeout("tcp", addr, defaultTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	return &conn{
		Conn:    nc,
		scanner: proto.NewScanner(nc, proto.Decoder{}, 0),
	}, nil
}

type client struct {
	addr     string
	poolSize int
	connPool chan *conn
	closing  chan struct{}
}

func (c *client) acquireConn() (*conn, error) {
	select {
	case <-c.closing:
		return nil, ErrTerminated
	default:
	}

	select {
	case cn := <-c.connPool:
		return cn, nil
	case <-c.closing:
		return nil, ErrTerminated
	}
}

// releaseConn returns cn to the pool, replacing it first when a failed
// round trip left it out of sync with the server.
func (c *client) releaseConn(cn *conn) {
	if cn.broken {
		if cn.Conn != nil {
			cn.Close()
		}
		fresh, err := c.reconnect()
		if err != nil {
			log.Err("unable to reconnect to %s: %v", c.addr, err)
			fresh = &conn{broken: true}
		}
		cn = fresh
	}

	c.connPool <- cn
}

func (c *client) reconnect() (*conn, error) {
	select {
	case <-c.closing:
		return nil, ErrTerminated
	default:
	}
	return makeConn(c.addr)
}

func (c *client) send(req proto.Value) (proto.Value, error) {
	cn, err := c.acquireConn()
	if err != nil {
		return nil, err
	}
	defer c.releaseConn(cn)

	if cn.Conn == nil {
		return nil, errors.Newf("not connected to %s", c.addr)
	}

	v, err := cn.roundTrip(req)
	if err != nil {
		cn.broken = true
	}
	return v, err
}

func (cn *conn) roundTrip(req proto.Value) (proto.Value, error) {
	if err := cn.SetDeadline(time.Now().Add(defaultTimeout)); err != nil {
		return nil, err
	}

	if err := proto.Write(cn, req); err != nil {
		return nil, err
	}

	if !cn.scanner.Scan() {
		if err := cn.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Wrap(proto.ErrIncomplete, "connection closed")
	}

	v, _, err := proto.Decode(cn.scanner.Bytes())
	return v, err
}

func (c *client) Do(args ...string) (proto.Value, error) {
	v, err := c.send(proto.BulkArray(args...))
	if err != nil {
		return nil, err
	}

	if e, ok := v.(proto.Error); ok {
		return nil, e
	}

	return v, nil
}

func (c *client) Ping() error {
	v, err := c.Do("PING")
	if err != nil {
		return err
	}
	if v != proto.SimpleString("PONG") {
		return errors.Wrapf(ErrUnexpectedReply, "ping: %v", v)
	}
	return nil
}

func (c *client) Get(key string) ([]byte, error) {
	v, err := c.Do("GET", key)
	if err != nil {
		return nil, err
	}

	b, ok := v.(proto.BulkString)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedReply, "get: %v", v.Kind())
	}
	return b, nil
}

func setArgs(key string, val []byte, ttl time.Duration) []string {
	args := []string{"SET", key, string(val)}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms == 0 {
			ms = 1
		}
		args = append(args, "PX", strconv.FormatInt(ms, 10))
	}
	return args
}

func (c *client) Set(key string, val []byte, ttl time.Duration) error {
	_, err := c.Do(setArgs(key, val, ttl)...)
	return err
}

func (c *client) Update(key string, val []byte, ttl time.Duration) error {
	_, err := c.Do(append(setArgs(key, val, ttl), "XX")...)
	return err
}

func (c *client) Remove(key string) error {
	v, err := c.Do("DEL", key)
	if err != nil {
		return err
	}
	if v == proto.Integer(0) {
		return ErrNotFound
	}
	return nil
}

func (c *client) Keys() ([]string, error) {
	v, err := c.Do("KEYS")
	if err != nil {
		return nil, err
	}

	vals, ok := v.(proto.Array)
	if !ok {
		log.Err("keys should return array, got %v", v.Kind())
		return nil, ErrUnexpectedReply
	}

	keys := make([]string, 0, len(vals))
	for _, key := range vals {
		k, ok := key.(proto.BulkString)
		if !ok {
			log.Err("keys should be bulk strings, got %v", key.Kind())
			continue
		}
		keys = append(keys, string(k))
	}

	return keys, nil
}

func (c *client) Close() (err error) {
	select {
	case <-c.closing:
		return ErrTerminated
	default:
	}

	log.Info("closing client...")
	close(c.closing)

	for i := 0; i < c.poolSize; i++ {
		cn := <-c.connPool
		if cn.Conn != nil {
			err = errors.CombineErrors(err, cn.Close())
		}
	}

	log.Info("closing client, done.")
	return err
}
