package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable or a group of them.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	DBMigrate     bool   // apply the embedded schema at startup
	JWTSecret     string // secret used to verify bearer tokens
	WebhookSecret string // shared secret expected on payment confirmations

	Scheduling  SchedulingConfig
	Reservation ReservationConfig
	Sweeper     SweeperConfig
	Notify      NotifyConfig
}

// SchedulingConfig carries the rules for placing screenings in a hall's day.
type SchedulingConfig struct {
	OpenHour        int            // earliest start hour (inclusive)
	LatestStartHour int            // latest start hour (inclusive, minute 0)
	CleaningBuffer  time.Duration  // hall turnaround after every screening
	MaxSuggestions  int            // cap on alternative starts offered on conflict
	Granularity     time.Duration  // rounding step for suggested starts
	LateSlack       time.Duration  // gap slack required before a late suggestion is made
	Location        *time.Location // time zone the business day is defined in
}

// ReservationConfig carries seat hold and refund rules.
type ReservationConfig struct {
	HoldTTL        time.Duration // default lifetime of a seat hold
	MaxSeats       int           // max seats per hold request
	RefundDeadline time.Duration // customers may refund until this long before start
}

// SweeperConfig controls the expired-hold sweeper.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// NotifyConfig controls notice delivery over RabbitMQ.
type NotifyConfig struct {
	RabbitURL       string // empty disables the broker; notices are only logged
	Queue           string // screening cancellation notices
	SaleQueue       string // confirmed sales
	ConsumerEnabled bool
	LogDir          string // where the in-process consumer appends its lines
}

// Load reads configuration values from the environment (after loading an
// optional .env file) and returns a Config.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		Env:           must("APP_ENV"),          // environment (dev/test/prod)
		Port:          must("APP_PORT"),         // port to bind the HTTP server
		DBUser:        must("DB_USER"),          // database user
		DBPass:        os.Getenv("DB_PASS"),     // database password (empty allowed)
		DBHost:        must("DB_HOST"),          // database host
		DBPort:        must("DB_PORT"),          // database port
		DBName:        must("DB_NAME"),          // database name
		DBMigrate:     envBool("DB_MIGRATE", false),
		JWTSecret:     must("JWT_SECRET"),
		WebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),
		Scheduling:    LoadSchedulingConfig(),
		Reservation:   LoadReservationConfig(),
		Sweeper:       LoadSweeperConfig(),
		Notify:        LoadNotifyConfig(),
	}
}

// LoadSchedulingConfig reads the SCHEDULE_* variables.  Defaults describe
// a 09:00 opening, 21:00 latest start and a 30 minute cleaning buffer.
func LoadSchedulingConfig() SchedulingConfig {
	tz := envStr("SCHEDULE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid SCHEDULE_TIMEZONE %q: %v", tz, err)
	}
	c := SchedulingConfig{
		OpenHour:        envInt("SCHEDULE_OPEN_HOUR", 9),
		LatestStartHour: envInt("SCHEDULE_LATEST_START_HOUR", 21),
		CleaningBuffer:  envDur("SCHEDULE_CLEANING_BUFFER", 30*time.Minute),
		MaxSuggestions:  envInt("SCHEDULE_MAX_SUGGESTIONS", 4),
		Granularity:     envDur("SCHEDULE_GRANULARITY", 5*time.Minute),
		LateSlack:       envDur("SCHEDULE_LATE_SLACK", 15*time.Minute),
		Location:        loc,
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("invalid scheduling config: %v", err)
	}
	return c
}

// Validate checks the window and that Granularity is a whole number of
// minutes, since proposed starts are rounded on minute boundaries.
func (c SchedulingConfig) Validate() error {
	if c.OpenHour < 0 || c.LatestStartHour > 23 || c.OpenHour > c.LatestStartHour {
		return fmt.Errorf("schedule window %02d:00-%02d:00", c.OpenHour, c.LatestStartHour)
	}
	if c.Granularity < time.Minute || c.Granularity%time.Minute != 0 {
		return fmt.Errorf("SCHEDULE_GRANULARITY %s must be a whole number of minutes", c.Granularity)
	}
	return nil
}

// DefaultSchedulingConfig returns the built-in scheduling rules in UTC.
func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		OpenHour:        9,
		LatestStartHour: 21,
		CleaningBuffer:  30 * time.Minute,
		MaxSuggestions:  4,
		Granularity:     5 * time.Minute,
		LateSlack:       15 * time.Minute,
		Location:        time.UTC,
	}
}

// LoadReservationConfig reads HOLD_TTL, HOLD_MAX_SEATS and REFUND_DEADLINE.
func LoadReservationConfig() ReservationConfig {
	c := ReservationConfig{
		HoldTTL:        envDur("HOLD_TTL", 10*time.Minute),
		MaxSeats:       envInt("HOLD_MAX_SEATS", 10),
		RefundDeadline: envDur("REFUND_DEADLINE", 120*time.Minute),
	}
	if c.HoldTTL <= 0 {
		c.HoldTTL = 10 * time.Minute
	}
	if c.MaxSeats < 1 {
		c.MaxSeats = 1
	}
	return c
}

// DefaultReservationConfig returns the built-in hold and refund rules.
func DefaultReservationConfig() ReservationConfig {
	return ReservationConfig{HoldTTL: 10 * time.Minute, MaxSeats: 10, RefundDeadline: 120 * time.Minute}
}

// LoadSweeperConfig reads SWEEP_INTERVAL and SWEEP_BATCH_SIZE.
func LoadSweeperConfig() SweeperConfig {
	c := SweeperConfig{
		Interval:  envDur("SWEEP_INTERVAL", 5*time.Minute),
		BatchSize: envInt("SWEEP_BATCH_SIZE", 500),
	}
	if c.Interval < time.Second {
		c.Interval = time.Second
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
	return c
}

// LoadNotifyConfig reads RABBITMQ_URL, NOTIFY_QUEUE, NOTIFY_SALE_QUEUE,
// NOTIFY_CONSUMER_ENABLED and NOTIFY_LOG_DIR.
func LoadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		Queue:           envStr("NOTIFY_QUEUE", "screening.cancelled"),
		SaleQueue:       envStr("NOTIFY_SALE_QUEUE", "sale.confirmed"),
		ConsumerEnabled: envBool("NOTIFY_CONSUMER_ENABLED", false),
		LogDir:          envStr("NOTIFY_LOG_DIR", "logs"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
