package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
)

// SMTPSender sends passcode emails over SMTP. Port 465 uses implicit TLS; other ports use STARTTLS
// when the server offers it.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Subject  string
}

// NewSMTPSender returns an SMTP transport. from defaults to username.
func NewSMTPSender(host, port, username, password, from, subject string) *SMTPSender {
	if from == "" {
		from = username
	}
	return &SMTPSender{Host: host, Port: port, Username: username, Password: password, From: from, Subject: subject}
}

// SendOTP delivers msg. The context bounds the dial only; net/smtp has no per-command deadline.
func (s *SMTPSender) SendOTP(ctx context.Context, msg OTPMessage) error {
	if s.Host == "" {
		return fmt.Errorf("mail: SMTP host not configured")
	}
	addr := net.JoinHostPort(s.Host, s.Port)
	tlsConfig := &tls.Config{ServerName: s.Host}

	var (
		conn net.Conn
		err  error
	)
	if s.Port == "465" {
		d := &tls.Dialer{Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if s.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if s.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(s.From, msg.To, s.Subject, renderOTPBody(msg))); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)
}
