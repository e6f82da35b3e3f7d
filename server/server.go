// Package server serves the protocol over TCP.
package server

import (
	"bufio"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/marcybelardo/lilykv/command"
	"github.com/marcybelardo/lilykv/config"
	"github.com/marcybelardo/lilykv/proto"
	"github.com/marcybelardo/lilykv/store"
	"github.com/marcybelardo/lilykv/store/snapshot"

	log "github.com/marcybelardo/lilykv/logger"
)

type Server interface {
	// Addr returns the address the server listens on.
	Addr() net.Addr
	// Stop stops accepting clients, waits for connected ones and saves
	// the snapshot when one is configured.
	Stop() error
	// Done is closed once Stop has finished.
	Done() <-chan struct{}
}

// Run starts a server on cfg.Addr which stops on SIGINT or SIGTERM.
func Run(cfg config.Config, st store.Store) (Server, error) {
	server, err := New(cfg, st)
	if err != nil {
		return nil, err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-signals:
			log.Info("shutdown")
			if err := server.Stop(); err != nil {
				log.Err("stop: %v", err)
			}
		case <-server.done:
		}
		signal.Stop(signals)
	}()

	return server, nil
}

// New starts a server on cfg.Addr.
func New(cfg config.Config, st store.Store) (*server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", cfg.Addr)
	}

	s := &server{
		cfg:      cfg,
		store:    st,
		decoder:  cfg.Decoder(),
		listener: listener,
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	s.handler = &command.Handler{Store: st}
	if cfg.SnapshotPath != "" {
		s.handler.Save = s.save
	}

	log.Info("server started on %s ...", listener.Addr())
	go s.start()

	return s, nil
}

type server struct {
	cfg      config.Config
	store    store.Store
	handler  *command.Handler
	decoder  proto.Decoder
	listener net.Listener

	closing  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error

	clients sync.WaitGroup
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	saveMu  sync.Mutex
}

func (s *server) Addr() net.Addr { return s.listener.Addr() }

func (s *server) Done() <-chan struct{} { return s.done }

func (s *server) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop()
		close(s.done)
	})
	return s.stopErr
}

func (s *server) stop() error {
	log.Info("stopping server gracefully...")

	s.interruptReads()
	err := s.listener.Close()

	select {
	case <-s.syncClients():
	case <-time.After(s.cfg.ShutdownTimeout):
		log.Info("timed out, closing clients...")
		s.closeConns()
		<-s.syncClients()
	}

	if s.cfg.SnapshotPath != "" {
		if serr := s.save(); serr != nil {
			err = errors.CombineErrors(err, serr)
		}
	}

	log.Info("stopping server, done.")
	return err
}

func (s *server) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	entries := s.store.Dump()
	if err := snapshot.SaveFile(s.cfg.SnapshotPath, entries); err != nil {
		log.Err("snapshot failed: %v", err)
		return err
	}

	log.Info("saved %d keys to %s", len(entries), s.cfg.SnapshotPath)
	return nil
}

func (s *server) syncClients() chan struct{} {
	done := make(chan struct{})
	go func() {
		s.clients.Wait()
		close(done)
	}()

	return done
}

func (s *server) start() {
	for {
		client, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}

			log.Err("client connection error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !s.track(client) {
			client.Close()
			return
		}

		go s.handleClient(client)
	}
}

// track registers conn unless the server is closing.
func (s *server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closing:
		return false
	default:
	}

	s.clients.Add(1)
	s.conns[conn] = struct{}{}
	return true
}

func (s *server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	s.clients.Done()
}

func (s *server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
	}
}

func (s *server) handleClient(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()
	defer func() {
		if err := recover(); err != nil {
			log.Err("handle client error: %v", err)
		}
	}()

	log.Info("new client connected: %v", conn.RemoteAddr())

	scanner := proto.NewScanner(&clientReader{s: s, conn: conn}, s.decoder, s.cfg.MaxMessageBytes)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		if err := s.handleMessage(scanner.Bytes(), w); err != nil {
			log.Info("closing a client %v: %v", conn.RemoteAddr(), err)
			return
		}

		select {
		case <-s.closing:
			return
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		s.rejectClient(conn, w, err)
		return
	}

	log.Info("client disconnected: %v", conn.RemoteAddr())
}

func (s *server) handleMessage(msg []byte, w *bufio.Writer) error {
	v, _, err := s.decoder.DecodeBytes(msg)
	if err != nil {
		return err
	}

	if err := proto.Write(w, s.handler.Handle(v)); err != nil {
		return err
	}
	return w.Flush()
}

// rejectClient reports a protocol error to the peer before the
// connection is closed. Network errors are only logged.
func (s *server) rejectClient(conn net.Conn, w *bufio.Writer, err error) {
	var ne net.Error
	if errors.Is(err, errClosing) || errors.As(err, &ne) {
		log.Info("closing a client %v: %v", conn.RemoteAddr(), err)
		return
	}

	log.Err("protocol error from %v: %v", conn.RemoteAddr(), err)
	if werr := proto.WriteErr(w, errors.Wrap(err, "Protocol error")); werr != nil {
		return
	}
	if w.Flush() != nil {
		return
	}

	// Half-close and drain so the reply is not lost to a reset.
	if hc, ok := conn.(interface{ CloseWrite() error }); ok && hc.CloseWrite() == nil {
		conn.SetReadDeadline(time.Now().Add(lingerTimeout))
		io.Copy(io.Discard, conn)
	}
}

const lingerTimeout = time.Second

var errClosing = errors.New("server is closing")

// clientReader arms the idle deadline before every read and refuses to
// read once the server is closing.
type clientReader struct {
	s    *server
	conn net.Conn
}

func (r *clientReader) Read(p []byte) (int, error) {
	if err := r.s.armDeadline(r.conn); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

func (s *server) armDeadline(conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closing:
		return errClosing
	default:
	}

	if s.cfg.IdleTimeout > 0 {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}
	return nil
}

// interruptReads marks the server as closing and wakes every client
// blocked waiting for its next message. Replies in flight still go out.
func (s *server) interruptReads() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.closing)
	now := time.Now()
	for conn := range s.conns {
		conn.SetReadDeadline(now)
	}
}
