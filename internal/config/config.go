package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"time"
)

type Config struct {
	Env        string `yaml:"env" env-default:"prod"`
	HTTPServer `yaml:"http_server"`
	DBUser     string `yaml:"db_user" env-required:"true"`
	DBPassword string `yaml:"db_password" env-required:"false"`
	DBHost     string `yaml:"db_host" env-default:"localhost"`
	DBPort     int    `yaml:"db_port" env-default:"3306"`
	DBName     string `yaml:"db_name" env-required:"true"`
	ParseTime  bool   `yaml:"parse_time" env-default:"true"`

	// Basic auth for the endpoints the external cron hits.
	CronLogin string `yaml:"cron_login"`
	CronPass  string `yaml:"cron_pass"`

	Planning Planning `yaml:"planning"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:4001"`
	Timeout     time.Duration `yaml:"timeout"  env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout"  env-default:"60s"`
}

type Planning struct {
	// How far forward the auto scheduler may search, in calendar days.
	HorizonDays int `yaml:"horizon_days" env-default:"60"`
	// Schedulable window of a day, end hour exclusive.
	DayStartHour int `yaml:"day_start_hour" env-default:"6"`
	DayEndHour   int `yaml:"day_end_hour" env-default:"22"`
	// Workers per slot for lines without an explicit capacity.
	DefaultLineCapacity int `yaml:"default_line_capacity" env-default:"4"`
}

func MustConfig() *Config {
	var cfg Config

	configPath := "./config/local.yaml"

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return &cfg
}
