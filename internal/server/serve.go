package server

import (
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ServeOption provides optional config for an http.Server passed to ServeFn.
type ServeOption struct {
	listener net.Listener
	certFile string
	keyFile  string
}

type Option func(*ServeOption)

// WithTLS serves over TLS using the given certificate and key files. Empty paths leave TLS off.
func WithTLS(certFile, keyFile string) Option {
	return func(so *ServeOption) {
		so.certFile = certFile
		so.keyFile = keyFile
	}
}

func WithListener(listener net.Listener) Option {
	return func(so *ServeOption) {
		so.listener = listener
	}
}

// ServeFn takes in an http.Server and additional config and returns a callback that can be run in a separate go-routine.
// The callback returns nil once the server is shut down.
func ServeFn(srv *http.Server, name string, opts ...Option) func() error {
	options := &ServeOption{}
	for _, o := range opts {
		o(options)
	}
	return func() error {
		if options.listener == nil {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			options.listener = ln
		}
		defer options.listener.Close()

		var err error
		if options.certFile != "" && options.keyFile != "" {
			log.Info().Msgf("Starting server[%s] at %s over TLS", name, options.listener.Addr())
			err = srv.ServeTLS(options.listener, options.certFile, options.keyFile)
		} else {
			log.Info().Msgf("Starting server[%s] at %s", name, options.listener.Addr())
			err = srv.Serve(options.listener)
		}
		if err != http.ErrServerClosed {
			log.Err(err).Msgf("server[%s] closed abnormally", name)
			return err
		}
		return nil
	}
}
