// Package notify composes admin notifications and delivers them as background mail tasks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue mail tasks are enqueued on.
	QueueDefault = "default"
	// TaskTypeSendMail is the asynq task type of outgoing mail.
	TaskTypeSendMail = "mail:send"
	maxMailRetry     = 5
)

// Mail is the payload of a TaskTypeSendMail task.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendMailTask constructs an asynq task for m.
func NewSendMailTask(m Mail) (*asynq.Task, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendMail, data, asynq.MaxRetry(maxMailRetry), asynq.Queue(QueueDefault)), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Mailer queues mail for the worker.
type Mailer struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewMailer constructs a Mailer. A nil queue drops mail with a log line.
func NewMailer(queue Enqueuer, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{queue: queue, logger: logger}
}

// Send enqueues m.
func (m *Mailer) Send(ctx context.Context, mail Mail) error {
	if strings.TrimSpace(mail.To) == "" {
		return errors.New("notify: recipient required")
	}
	if m.queue == nil {
		m.logger.Info("mail queue disabled, dropping mail", slog.String("to", mail.To), slog.String("subject", mail.Subject))
		return nil
	}
	task, err := NewSendMailTask(mail)
	if err != nil {
		return err
	}
	info, err := m.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	m.logger.Debug("mail enqueued", slog.String("task_id", info.ID), slog.String("subject", mail.Subject))
	return nil
}

// Deliverer sends a mail synchronously.
type Deliverer interface {
	Deliver(ctx context.Context, m Mail) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPSender builds a sender for host:port. Credentials are optional.
func NewSMTPSender(host string, port int, from, username, password string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{addr: host + ":" + strconv.Itoa(port), from: from, auth: auth}
}

// Deliver implements Deliverer.
func (s *SMTPSender) Deliver(_ context.Context, m Mail) error {
	return smtp.SendMail(s.addr, s.auth, s.from, []string{m.To}, compose(s.from, m))
}

func compose(from string, m Mail) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// LogSender writes mail to the log instead of sending it. Used when no SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Deliver implements Deliverer.
func (s LogSender) Deliver(_ context.Context, m Mail) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail delivered to log", slog.String("to", m.To), slog.String("subject", m.Subject))
	return nil
}

// HandleSendMail returns the asynq handler delivering TaskTypeSendMail tasks.
func HandleSendMail(d Deliverer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var m Mail
		if err := json.Unmarshal(t.Payload(), &m); err != nil || m.To == "" {
			return fmt.Errorf("decode mail payload: %w", asynq.SkipRetry)
		}
		return d.Deliver(ctx, m)
	}
}
