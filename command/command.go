// Package command executes requests against a store and builds replies.
package command

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store"
)

var (
	replyOK   = proto.SimpleString("OK")
	replyPong = proto.SimpleString("PONG")
)

// Handler executes requests. It is safe for concurrent use when Store is.
type Handler struct {
	Store store.Store
	// Save persists the store. SAVE fails when it is nil.
	Save func() error
}

// Handle executes the request held by v and returns the reply. Failures
// are returned as Error values, never as Go errors.
func (h *Handler) Handle(v proto.Value) proto.Value {
	req, err := ParseReq(v)
	if err != nil {
		return proto.ErrorReply(err)
	}

	return h.processRequest(req)
}

func (h *Handler) processRequest(r *Req) proto.Value {
	switch r.Cmd {
	case "PING":
		return h.ping(r)
	case "ECHO":
		return h.echo(r)
	case "GET":
		return h.get(r)
	case "SET":
		return h.set(r)
	case "DEL":
		return h.del(r)
	case "EXISTS":
		return h.exists(r)
	case "KEYS":
		return h.keys(r)
	case "DBSIZE":
		return h.dbsize(r)
	case "SAVE":
		return h.save(r)
	}

	return errorf("unknown command '%s'", r.Cmd)
}

func errorf(format string, args ...interface{}) proto.Error {
	return proto.ErrorReply(errors.Newf(format, args...))
}

func wrongArgs(r *Req) proto.Error {
	return errorf("wrong number of arguments for '%s' command", strings.ToLower(r.Cmd))
}

func (h *Handler) ping(r *Req) proto.Value {
	switch len(r.Args) {
	case 0:
		return replyPong
	case 1:
		return proto.BulkString(r.Args[0])
	}
	return wrongArgs(r)
}

func (h *Handler) echo(r *Req) proto.Value {
	if len(r.Args) != 1 {
		return wrongArgs(r)
	}
	return proto.BulkString(r.Args[0])
}

func (h *Handler) get(r *Req) proto.Value {
	if len(r.Args) != 1 {
		return wrongArgs(r)
	}

	val, err := h.Store.Get(string(r.Args[0]))
	if err != nil {
		return proto.ErrorReply(err)
	}
	return proto.BulkString(val)
}

// set handles SET key value [EX seconds | PX milliseconds] [XX].
func (h *Handler) set(r *Req) proto.Value {
	if len(r.Args) < 2 {
		return wrongArgs(r)
	}

	key, val := string(r.Args[0]), r.Args[1]

	var ttl time.Duration
	var xx, expireSet bool
	opts := r.Args[2:]
	for i := 0; i < len(opts); i++ {
		switch opt := strings.ToUpper(string(opts[i])); opt {
		case "XX":
			xx = true
		case "EX", "PX":
			if expireSet || i+1 >= len(opts) {
				return errorf("syntax error")
			}
			i++
			n, err := strconv.ParseInt(string(opts[i]), 10, 64)
			if err != nil {
				return errorf("value is not an integer or out of range")
			}
			unit := time.Second
			if opt == "PX" {
				unit = time.Millisecond
			}
			if n <= 0 || n > int64(maxTTL/unit) {
				return errorf("invalid expire time in 'set' command")
			}
			ttl = time.Duration(n) * unit
			expireSet = true
		default:
			return errorf("syntax error")
		}
	}

	var err error
	if xx {
		err = h.Store.Update(key, val, ttl)
	} else {
		err = h.Store.Set(key, val, ttl)
	}
	if err != nil {
		return proto.ErrorReply(err)
	}

	return replyOK
}

const maxTTL = time.Duration(1<<63 - 1)

func (h *Handler) del(r *Req) proto.Value {
	if len(r.Args) == 0 {
		return wrongArgs(r)
	}

	var n int64
	for _, key := range r.Args {
		err := h.Store.Remove(string(key))
		if err == nil {
			n++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return proto.ErrorReply(err)
		}
	}

	return proto.Integer(n)
}

func (h *Handler) exists(r *Req) proto.Value {
	if len(r.Args) == 0 {
		return wrongArgs(r)
	}

	var n int64
	for _, key := range r.Args {
		if _, err := h.Store.Get(string(key)); err == nil {
			n++
		}
	}

	return proto.Integer(n)
}

func (h *Handler) keys(r *Req) proto.Value {
	if len(r.Args) != 0 {
		return wrongArgs(r)
	}

	keys := h.Store.Keys()
	sort.Strings(keys)

	return proto.BulkArray(keys...)
}

func (h *Handler) dbsize(r *Req) proto.Value {
	if len(r.Args) != 0 {
		return wrongArgs(r)
	}
	return proto.Integer(len(h.Store.Keys()))
}

func (h *Handler) save(r *Req) proto.Value {
	if len(r.Args) != 0 {
		return wrongArgs(r)
	}
	if h.Save == nil {
		return errorf("persistence is not configured")
	}
	if err := h.Save(); err != nil {
		return proto.ErrorReply(err)
	}
	return replyOK
}
