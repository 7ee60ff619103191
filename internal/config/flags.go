package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command line overrides of the environment.
type Flags struct {
	EnvFile   string
	TicketDir string
}

// ParseFlags parses args (without the program name).
func ParseFlags(name string, args []string) (Flags, error) {
	var f Flags
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&f.EnvFile, "env-file", "", "dotenv file to load before reading the environment")
	fs.StringVar(&f.TicketDir, "ticket-dir", "", "directory holding ticket descriptor and payload files")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// LoadWithFlags loads the configuration and applies f on top of it.
func LoadWithFlags(f Flags) (*Config, error) {
	var envFiles []string
	if f.EnvFile != "" {
		envFiles = append(envFiles, f.EnvFile)
	}
	cfg, err := Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if f.TicketDir != "" {
		cfg.Store.TicketDir = f.TicketDir
	}
	return cfg, nil
}
