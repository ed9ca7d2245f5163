// Package imap appends parsed records to an IMAP mailbox. Each record is
// rebuilt into an RFC-822 message from its header fields and body; the mbox
// envelope data is carried along in an X-Envelope-From header.
package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"

	"github.com/kamir/flume-mbox-source/model"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	TargetFolder       string
}

// Sink uploads records to the configured mailbox. The connection is opened
// lazily on the first Emit and kept for the lifetime of the sink.
type Sink struct {
	opts    Options
	logger  *slog.Logger
	client  *imapclient.Client
	cleanup func()
}

func NewSink(opts Options, logger *slog.Logger) (*Sink, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	return &Sink{opts: opts, logger: logger}, nil
}

func (s *Sink) Emit(ctx context.Context, rec *model.Record) error {
	if s.client == nil {
		client, cleanup, err := s.dial(ctx)
		if err != nil {
			return err
		}
		s.client = client
		s.cleanup = cleanup
	}

	raw, err := buildMessage(rec)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	return s.appendMessage(raw)
}

func (s *Sink) Close() error {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
		s.client = nil
	}
	return nil
}

// buildMessage renders a record back into message bytes. Header fields keep
// their encounter order; leading whitespace that the parser captured after
// the colon is dropped so the writer does not double it.
func buildMessage(rec *model.Record) ([]byte, error) {
	var header message.Header

	envelope := envelopeLine(rec)
	if envelope != "" {
		header.Add("X-Envelope-From", envelope)
	}

	var body string
	// message.Header.Add prepends, so walk the fields backwards to preserve
	// encounter order in the output.
	fields := rec.Fields()
	for i := len(fields) - 1; i >= 0; i-- {
		field := fields[i]
		switch field.Name {
		case model.FieldSender, model.FieldDate, model.FieldSenderInfo:
			// Folded into X-Envelope-From.
		case model.FieldBody:
			body = field.Value
		default:
			header.Add(field.Name, strings.TrimLeft(field.Value, " \t"))
		}
	}

	var buf bytes.Buffer
	writer, err := message.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	return buf.Bytes(), nil
}

func envelopeLine(rec *model.Record) string {
	sender, _ := rec.Get(model.FieldSender)
	date, _ := rec.Get(model.FieldDate)
	info, _ := rec.Get(model.FieldSenderInfo)
	return strings.TrimRight(sender+" "+date+info, " ")
}

func (s *Sink) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	options := &imapclient.Options{}

	if s.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         s.opts.Host,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if s.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if err := s.ensureMailbox(client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	if s.logger != nil {
		s.logger.Debug("imap connection established", "address", address, "user", s.opts.Username, "target", s.targetFolder(), "tls", s.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				if s.logger != nil {
					s.logger.Warn("imap logout failed", "err", err)
				}
			}
		}
		if err := client.Close(); err != nil && s.logger != nil {
			s.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

func (s *Sink) appendMessage(raw []byte) error {
	target := s.targetFolder()
	size := int64(len(raw))

	cmd := s.client.Append(target, size, nil)

	remaining := raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}

	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}

func (s *Sink) targetFolder() string {
	if s.opts.TargetFolder == "" {
		return "INBOX"
	}
	return s.opts.TargetFolder
}

func (s *Sink) ensureMailbox(client *imapclient.Client) error {
	target := s.targetFolder()
	cmd := client.Create(target, nil)
	if err := cmd.Wait(); err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) {
			if respErr.Code == imapv2.ResponseCodeAlreadyExists {
				if s.logger != nil {
					s.logger.Debug("imap mailbox already exists", "mailbox", target)
				}
				return nil
			}
		}
		return fmt.Errorf("ensure mailbox %s: %w", target, err)
	}

	if s.logger != nil {
		s.logger.Info("imap mailbox created", "mailbox", target)
	}

	return nil
}
