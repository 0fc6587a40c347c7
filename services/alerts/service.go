package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"loadscout-backend/services/store"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("services/alerts")

// Message is one composed notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender dispatches a composed notification. The SMTP transport is one
// implementation; tests substitute their own.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// SmtpSender sends mail over plain-auth SMTP, falling back to an
// unauthenticated send when the server doesn't offer AUTH.
type SmtpSender struct {
	Config SmtpConfig
}

func (s SmtpSender) Send(ctx context.Context, msg Message) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("LoadScout <%s>", s.Config.EmailAddress)
	mail.To = []string{msg.To}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.Config.Server, s.Config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", s.Config.EmailAddress, s.Config.Password, s.Config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		return mail.Send(addr, nil)
	}
	return err
}

type Config struct {
	// only postings created within this trailing window are evaluated
	Window time.Duration `json:"window"`
}

func (c Config) withDefaults() Config {
	if c.Window == 0 {
		c.Window = 5 * time.Minute
	}
	return c
}

// Service is the alert matcher: a stateless cross-product evaluation of
// active subscriptions against recently created postings.
type Service struct {
	db     *gorm.DB
	sender Sender
	cfg    Config
}

func NewService(db *gorm.DB, sender Sender, cfg Config) *Service {
	return &Service{db: db, sender: sender, cfg: cfg.withDefaults()}
}

// Run evaluates one pass. It may overlap a scrape in progress; seeing a
// posting slightly early or late is accepted, so there is no locking.
func (s *Service) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	var active []store.Alert
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&active).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not list active alerts")
		return err
	}
	if len(active) == 0 {
		slog.InfoContext(ctx, "no active alerts")
		return nil
	}

	cutoff := time.Now().Add(-s.cfg.Window)
	var recent []store.Load
	err = s.db.WithContext(ctx).Where("created_at >= ?", cutoff).Find(&recent).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not list recent postings")
		return err
	}
	if len(recent) == 0 {
		slog.InfoContext(ctx, "no recent postings")
		return nil
	}

	span.SetAttributes(
		attribute.Int("alerts", len(active)),
		attribute.Int("postings", len(recent)),
	)
	slog.InfoContext(ctx, "evaluating alerts", "alerts", len(active), "postings", len(recent))

	matches := 0
	for _, load := range recent {
		for _, alert := range active {
			if !Matches(alert, load) {
				continue
			}
			matches++
			msg := Compose(alert, load)
			if err := s.sender.Send(ctx, msg); err != nil {
				// one failed dispatch must not stop the rest
				slog.ErrorContext(ctx, "could not send alert notification",
					"to", msg.To, "source_id", load.SourceID, "err", err)
			}
		}
	}
	slog.InfoContext(ctx, "alert pass finished", "matches", matches)
	return nil
}

// Matches applies the geo rule: both the origin and the destination
// distances must be within the subscription's radii (inclusive). A pair
// missing any geodata never matches.
func Matches(alert store.Alert, load store.Load) bool {
	if !load.Origin.HasGeo() || !load.Destination.HasGeo() {
		return false
	}
	if !alert.HasOriginGeo() || !alert.HasDestinationGeo() {
		return false
	}

	originDist := DistanceMiles(alert.OriginLat, alert.OriginLng, load.Origin.Lat, load.Origin.Lng)
	if originDist > alert.OriginRadius {
		return false
	}
	destDist := DistanceMiles(alert.DestinationLat, alert.DestinationLng, load.Destination.Lat, load.Destination.Lng)
	return destDist <= alert.DestinationRadius
}

// Compose builds the notification for a matched pair.
func Compose(alert store.Alert, load store.Load) Message {
	lane := fmt.Sprintf("%s, %s → %s, %s",
		load.Origin.City, load.Origin.State,
		load.Destination.City, load.Destination.State)

	body := fmt.Sprintf(`A new load matching your alert (%s → %s) was just posted.

Lane:       %s
Truck type: %s
Miles:      %d
Pickup:     %s
Delivery:   %s
Broker:     %s (%s)
Notes:      %s
`,
		alert.OriginText, alert.DestinationText,
		lane,
		load.TruckType,
		load.Miles,
		load.PickupDate,
		load.DeliveryDateTime,
		load.BrokerName, load.BrokerEmail,
		load.BrokerNotes,
	)

	return Message{
		To:      alert.UserEmail,
		Subject: "New load match: " + lane,
		Body:    body,
	}
}
