package services

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/emedical/clinic-api/internal/models"
)

// Notifier delivers emails to principals.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
	// SendAppointmentStatus is best effort and must not block the caller.
	SendAppointmentStatus(patient *models.PrincipalSummary, apt *models.Appointment)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type NotificationService struct {
	from   string
	dialer *gomail.Dialer
	logger zerolog.Logger
}

func NewNotificationService(cfg SMTPConfig, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

func (s *NotificationService) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(to, "Your password reset token (valid for 10 min)", PasswordResetBody(resetURL))
}

func (s *NotificationService) SendAppointmentStatus(patient *models.PrincipalSummary, apt *models.Appointment) {
	if patient == nil || patient.Email == "" {
		s.logger.Warn().Str("appointment", apt.ID.Hex()).Msg("status email not sent: patient has no email")
		return
	}
	subject, body := AppointmentStatusBody(patient.Name, apt)

	go func() {
		if err := s.send(patient.Email, subject, body); err != nil {
			s.logger.Error().Err(err).Str("appointment", apt.ID.Hex()).Msg("failed to send appointment status email")
			return
		}
		s.logger.Info().Str("appointment", apt.ID.Hex()).Msg("appointment status email sent")
	}()
}

func (s *NotificationService) send(to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return s.dialer.DialAndSend(msg)
}

func PasswordResetBody(resetURL string) string {
	resetURL = html.EscapeString(resetURL)
	return fmt.Sprintf(`<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
<p><a href="%s">%s</a></p>
<p>If you didn't forget your password, please ignore this email!</p>`, resetURL, resetURL)
}

func AppointmentStatusBody(name string, apt *models.Appointment) (subject, body string) {
	when := apt.Date.UTC().Format("Jan 2, 2006 at 15:04 UTC")
	name = html.EscapeString(name)
	doctor := "your doctor"
	if apt.Doctor != nil && apt.Doctor.Name != "" {
		doctor = html.EscapeString(apt.Doctor.Name)
	}

	switch apt.Status {
	case models.StatusNotFinished:
		subject = "Your appointment was accepted"
		body = fmt.Sprintf("<p>Hi %s,</p><p>%s accepted your appointment on %s.</p>", name, doctor, when)
	case models.StatusRejected:
		subject = "Your appointment was rejected"
		body = fmt.Sprintf("<p>Hi %s,</p><p>%s could not accept your appointment on %s. Please pick another time.</p>", name, doctor, when)
	case models.StatusFinished:
		subject = "Your examination results are ready"
		body = fmt.Sprintf("<p>Hi %s,</p><p>Your examination with %s on %s is finished. You can review it in your appointments.</p>", name, doctor, when)
	default:
		subject = "Your appointment was updated"
		body = fmt.Sprintf("<p>Hi %s,</p><p>Your appointment on %s is now %s.</p>", name, when, apt.Status)
	}
	return subject, body
}
