package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers notifications over SMTP. With no SMTP host configured it
// only logs what it would have sent.
type Sender struct {
	cfg      config.SMTPConfig
	log      *logrus.Logger
	sendMail sendFunc
}

func NewSender(cfg config.SMTPConfig, log *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, log: log, sendMail: smtp.SendMail}
}

func (s *Sender) Send(ctx context.Context, n kafka.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := s.log.WithFields(logrus.Fields{"to": n.To, "subject": n.Subject})
	if s.cfg.Host == "" {
		entry.Info("smtp not configured, email logged only")
		return nil
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, auth, s.cfg.From, []string{n.To}, buildMessage(s.cfg.From, n)); err != nil {
		return fmt.Errorf("send email to %s: %w", n.To, err)
	}
	entry.Info("email sent")
	return nil
}

// HandleMessage is the worker's consumer callback. Undecodable messages are
// logged and skipped so that one bad payload cannot stall the topic.
func (s *Sender) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var n kafka.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		s.log.WithError(err).WithField("offset", msg.Offset).Warn("skip undecodable notification")
		return nil
	}
	if n.To == "" {
		s.log.WithField("offset", msg.Offset).Warn("skip notification without recipient")
		return nil
	}
	return s.Send(ctx, n)
}

func buildMessage(from string, n kafka.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", n.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", n.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	return []byte(b.String())
}
