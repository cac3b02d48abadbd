package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SereneyePro/rrweb-uploader/collector"
	"github.com/SereneyePro/rrweb-uploader/logging"
)

// secretHeader carries the pre-shared secret on the header-authenticated
// path. Capture clients must be allowed to send it cross-origin, so it is
// allow-listed in the CORS preflight response.
const secretHeader = "X-Recording-Secret"

// Config defines the gateway's wire-level settings.
type Config struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string

	// SharedSecret guards the header-authenticated path. Empty disables
	// the check.
	SharedSecret string

	// AllowedOrigins lists the origins capture clients may post from.
	// "*" allows any origin. Defaults to allowing any.
	AllowedOrigins []string
}

// DefaultConfig provides the reference wire settings.
var DefaultConfig = Config{
	Addr:           ":8080",
	AllowedOrigins: []string{"*"},
}

// Options configures a Server instance using the functional options
// pattern.
type Options struct {
	// Config contains the wire-level settings. Defaults to DefaultConfig.
	Config Config

	// Collector handles the recording lifecycle behind every route.
	// Defaults to an in-memory collector.
	Collector *collector.Collector

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Server is the HTTP front of the collector.
type Server struct {
	config     Config
	collector  *collector.Collector
	logger     logging.Logger
	httpServer *http.Server
}

// New creates a Server with optional overrides.
func New(optFns ...func(o *Options)) *Server {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Collector == nil {
		opts.Collector = collector.New()
	}
	if opts.Config.Addr == "" {
		opts.Config.Addr = DefaultConfig.Addr
	}
	if len(opts.Config.AllowedOrigins) == 0 {
		opts.Config.AllowedOrigins = DefaultConfig.AllowedOrigins
	}

	s := &Server{
		config:    opts.Config,
		collector: opts.Collector,
		logger:    opts.Logger,
	}
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.HandleFunc("/api/record/start", s.cors(s.secret(s.handleStart)))
	mux.HandleFunc("/api/record/chunk", s.cors(s.secret(s.handleChunk)))
	mux.HandleFunc("/api/record/finish", s.cors(s.secret(s.handleFinish)))

	// beacon routes authenticate by session token, never by the secret
	mux.HandleFunc("/api/record/chunk-beacon", s.cors(s.handleChunkBeacon))
	mux.HandleFunc("/api/record/finish-beacon", s.cors(s.handleFinishBeacon))

	mux.HandleFunc("/api/recordings/merge", s.cors(s.secret(s.handleMerge)))
	mux.HandleFunc("/api/recordings", s.cors(s.secret(s.handleRecordings)))
	mux.HandleFunc("/api/recordings/", s.cors(s.secret(s.handleRecording)))
	return mux
}

// Handler returns the fully wired route handler, for tests and for
// embedding in a caller-owned server.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start listens and serves until Shutdown is called. A clean shutdown
// returns nil.
func (s *Server) Start() error {
	s.logger.Info("gateway listening addr=%s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
