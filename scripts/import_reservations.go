package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pcbooking/internal/config"
	"pcbooking/internal/database"
	"pcbooking/internal/domain"
	"pcbooking/internal/interval"
	"pcbooking/internal/models"
	"pcbooking/internal/pin"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ReservationsFile is the seed format:
//
//	reservations:
//	  - resource: PC 094
//	    booked_by: Ana
//	    start_date: 2024-01-10
//	    duration_days: 3
//	    pin: "1234"
type ReservationsFile struct {
	Reservations []SeedReservation `yaml:"reservations"`
}

type SeedReservation struct {
	Resource     string `yaml:"resource"`
	BookedBy     string `yaml:"booked_by"`
	StartDate    string `yaml:"start_date"`
	DurationDays int    `yaml:"duration_days"`
	PIN          string `yaml:"pin"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		seedPath   = flag.String("reservations", "configs/reservations.yaml", "path to reservations.yaml")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read reservations: %w", err)
	}
	var seed ReservationsFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse reservations: %w", err)
	}
	if len(seed.Reservations) == 0 {
		return fmt.Errorf("no reservations in yaml")
	}

	hasher, err := pin.New(cfg.Pin.Algorithm, cfg.Pin.BcryptCost, cfg.Pin.HMACKey)
	if err != nil {
		return fmt.Errorf("init pin hasher: %w", err)
	}

	roster := make(map[string]bool, len(cfg.Booking.Resources))
	for _, r := range cfg.Booking.Resources {
		roster[r] = true
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	skipped := 0
	for i, s := range seed.Reservations {
		r, err := toReservation(s, roster, hasher)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}

		err = db.CreateReservationWithLock(ctx, r)
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			logger.Warn().
				Str("resource", r.Resource).
				Str("start_date", s.StartDate).
				Int64("blocking_id", conflict.Blocking.ReservationID).
				Msg("skipping overlapping reservation")
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("create entry %d: %w", i+1, err)
		}
		created++
	}

	logger.Info().Int("created", created).Int("skipped", skipped).Msg("reservations import done")
	return nil
}

func toReservation(s SeedReservation, roster map[string]bool, hasher pin.Hasher) (*models.Reservation, error) {
	resource := strings.TrimSpace(s.Resource)
	if !roster[resource] {
		return nil, fmt.Errorf("resource %q is not in the roster", resource)
	}
	start, err := interval.ParseDate(s.StartDate)
	if err != nil {
		return nil, err
	}
	if s.DurationDays < 1 {
		return nil, fmt.Errorf("duration_days must be positive")
	}
	if strings.TrimSpace(s.BookedBy) == "" {
		return nil, fmt.Errorf("booked_by is required")
	}

	hash := pin.PlaceholderHash
	if secret := strings.TrimSpace(s.PIN); secret != "" {
		if hash, err = hasher.Hash(secret); err != nil {
			return nil, fmt.Errorf("hash pin: %w", err)
		}
	}

	return &models.Reservation{
		StartDate:    start,
		DurationDays: s.DurationDays,
		Resource:     resource,
		BookedBy:     strings.TrimSpace(s.BookedBy),
		PinHash:      hash,
	}, nil
}
