package config

import (
	"errors"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const envPrefix = "CAPSFORMS_"

type Config struct {
	Addr         string
	DBUrl        string
	Debug        bool
	LogFile      string
	EnforceRoles bool

	host string
	port uint
}

// BindFlags registers the configuration flags on fs. Values left at their
// defaults are later filled from CAPSFORMS_* environment variables by Load.
func BindFlags(fs *pflag.FlagSet) *Config {
	cfg := &Config{}
	fs.StringVar(&cfg.host, "host", "0.0.0.0", "listen host name")
	fs.UintVar(&cfg.port, "port", 8080, "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", "capsforms.sqlite", "path to SQLite3 DB file")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	fs.StringVar(&cfg.LogFile, "log-file", "", "also write logs to this file, rotated by size")
	fs.BoolVar(&cfg.EnforceRoles, "enforce-roles", false, "require the admin role from the upstream identity headers on admin routes")
	return cfg
}

// Load applies environment fallbacks for flags that were not set explicitly
// and validates the result.
func (cfg *Config) Load(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		env := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v := os.Getenv(env); v != "" {
			if err := f.Value.Set(v); err != nil {
				errs = append(errs, errors.New("invalid "+env+": "+err.Error()))
			}
		}
	})
	if err := errors.Join(errs...); err != nil {
		return err
	}

	cfg.Addr = net.JoinHostPort(cfg.host, strconv.Itoa(int(cfg.port)))
	return cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.DBUrl == "" {
		return errors.New("missing parameter --db-url")
	}
	if cfg.port == 0 || cfg.port > 65535 {
		return errors.New("parameter --port out of range")
	}
	return nil
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
