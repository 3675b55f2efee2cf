package config

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-ledger/pkg/kafka"
	"github.com/Astemirdum/library-ledger/pkg/logger"
	"github.com/Astemirdum/library-ledger/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE" default:"10s"`
}

func (s HTTPServer) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Ledger holds the rules for fines and availability repair.
type Ledger struct {
	FinePerDay int    `yaml:"finePerDay" envconfig:"FINE_PER_DAY" default:"10"`
	TimeZone   string `yaml:"timeZone" envconfig:"LIBRARY_TZ" default:"Local"`
	// RepairSchedule is a cron spec; empty disables the job.
	RepairSchedule string `yaml:"repairSchedule" envconfig:"AVAILABILITY_REPAIR_SCHEDULE"`
}

// Location is the zone "today" is computed in.
func (l Ledger) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "LIBRARY_TZ %q", l.TimeZone)
	}
	return loc, nil
}

type Config struct {
	Server   HTTPServer   `yaml:"server"`
	Database postgres.DB  `yaml:"db"`
	Kafka    kafka.Config `yaml:"kafka"`
	Log      logger.Log   `yaml:"log"`
	Ledger   Ledger       `yaml:"ledger"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment once; options override it.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		c, err := Load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = c
		printConfig(cfg)
	})

	return cfg
}

// Load reads and validates a fresh config.
func Load(ops ...Option) (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.Wrap(err, "envconfig.Process")
	}
	for _, op := range ops {
		op(&config)
	}
	if config.Ledger.FinePerDay <= 0 {
		return nil, errors.Errorf("FINE_PER_DAY must be positive, got %d", config.Ledger.FinePerDay)
	}
	if _, err := config.Ledger.Location(); err != nil {
		return nil, err
	}
	return &config, nil
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
