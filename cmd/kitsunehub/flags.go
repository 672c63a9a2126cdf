package main

import (
	"fmt"
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

// Flag names double as config keys.
var (
	fDebug          = "debug"
	fHubPath        = "hub_path"
	fHost           = "host"
	fPort           = "port"
	fInstallersPath = "installers_path"
	fLogsPath       = "logs_path"
	fLogBackend     = "log_backend"
	fLogDSN         = "log_dsn"
	fOtel           = "otel"
)
var profiles []string

func getFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    fDebug,
			Usage:   "Enable debug logging",
			Sources: getSources(fDebug),
		},
		&cli.StringSliceFlag{
			Name:        "profile",
			Usage:       "YAML profile files that specify flags. Can be stacked from highest precedence to lowest.",
			TakesFile:   true,
			Destination: &profiles,
		},
		&cli.StringFlag{
			Name:      fHubPath,
			Usage:     "Directory holding hub.yml and, by default, the installers and logs directories",
			TakesFile: true,
			Sources:   getSources(fHubPath),
		},
		&cli.StringFlag{
			Name:    fHost,
			Usage:   "The host the API listens on",
			Sources: getSources(fHost),
		},
		&cli.StringFlag{
			Name:    fPort,
			Usage:   "The port the API listens on",
			Sources: getSources(fPort),
		},
		&cli.StringFlag{
			Name:      fInstallersPath,
			Usage:     "Directory scanned for installer descriptors",
			TakesFile: true,
			Sources:   getSources(fInstallersPath),
		},
		&cli.StringFlag{
			Name:      fLogsPath,
			Usage:     "Directory for installer action logs",
			TakesFile: true,
			Sources:   getSources(fLogsPath),
		},
		&cli.StringFlag{
			Name:    fLogBackend,
			Usage:   "Where action logs are kept: file, sqlite or postgres",
			Sources: getSources(fLogBackend),
		},
		&cli.StringFlag{
			Name:    fLogDSN,
			Usage:   "The postgres connection string for the postgres log backend",
			Sources: getSources(fLogDSN),
		},
		&cli.BoolFlag{
			Name:    fOtel,
			Usage:   "Export traces, metrics and logs over OTLP",
			Sources: getSources(fOtel),
		},
	}
}

// overrides returns the config values given explicitly on the command line or through a profile.
// Anything else is left to the environment, hub.yml and defaults.
func overrides(cmd *cli.Command) map[string]any {
	values := map[string]any{}
	for _, name := range []string{fHubPath, fHost, fPort, fInstallersPath, fLogsPath, fLogBackend, fLogDSN} {
		if cmd.IsSet(name) {
			values[name] = cmd.String(name)
		}
	}
	for _, name := range []string{fDebug, fOtel} {
		if cmd.IsSet(name) {
			values[name] = cmd.Bool(name)
		}
	}
	return values
}

func getSources(name string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(&profilesSource{name: name})
}

type profilesSource struct {
	name string
}

// GoString implements cli.ValueSource.
func (ps *profilesSource) GoString() string {
	return fmt.Sprintf("&profilesSource{name:%[1]q}", ps.name)
}

func (ps *profilesSource) String() string {
	return strings.Join(profiles, ",")
}

func (ps *profilesSource) Lookup() (string, bool) {
	sources := cli.ValueSourceChain{
		Chain: []cli.ValueSource{},
	}
	for i := range profiles {
		sources.Chain = append(
			sources.Chain,
			yaml.YAML(ps.name, altsrc.NewStringPtrSourcer(&profiles[i])),
		)
	}
	return sources.Lookup()
}
