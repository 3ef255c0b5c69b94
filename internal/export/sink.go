package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"nlbwdash/internal/config"
)

type Sink interface {
	Publish(ctx context.Context, d *Digest) error
}

// FileSink writes each digest to its own file under dir.
type FileSink struct {
	dir    string
	format string
}

func NewFileSink(dir, format string) *FileSink {
	if format != "yaml" {
		format = "json"
	}
	return &FileSink{dir: dir, format: format}
}

// Path is the file a digest is written to.
func (s *FileSink) Path(d *Digest) string {
	return filepath.Join(s.dir, fmt.Sprintf("digest-%s_%s.%s", d.From, d.To, s.format))
}

func (s *FileSink) encode(d *Digest) ([]byte, error) {
	if s.format == "yaml" {
		return yaml.Marshal(d)
	}
	return json.MarshalIndent(d, "", "  ")
}

// Publish replaces the digest file atomically.
func (s *FileSink) Publish(ctx context.Context, d *Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.encode(d)
	if err != nil {
		return fmt.Errorf("encoding digest: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	path := s.Path(d)
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp digest file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing digest: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp digest file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming digest file: %w", err)
	}

	return nil
}

// NATSSink publishes JSON-encoded digests to a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
	log     *zap.Logger
}

func NewNATSSink(cfg config.NATSConfig, log *zap.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("nlbwdash"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	log = log.Named("nats")
	log.Info("connected to NATS", zap.String("url", cfg.URL))
	return &NATSSink{nc: nc, subject: cfg.Subject, log: log}, nil
}

func (s *NATSSink) Publish(ctx context.Context, d *Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding digest: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publishing digest to %s: %w", s.subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.log.Warn("draining NATS connection", zap.Error(err))
		}
		s.log.Info("NATS connection drained and closed")
	}
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, d *Digest) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
