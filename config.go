package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/42wim/wmix/report"
	"github.com/42wim/wmix/wmi"
)

type config struct {
	Namespace string
	Output    report.Format
	LogLevel  slog.Level
	Threading wmi.ThreadingModel
	BatchSize int
	Listen    string
}

// parseConfig reads wmix.yaml from cfgFile, or from the working directory
// and the user config directory. WMIX_* environment variables override the
// file.
func parseConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("namespace", wmi.DefaultNamespace)
	v.SetDefault("output", string(report.FormatText))
	v.SetDefault("log-level", "warn")
	v.SetDefault("threading", "multithreaded")
	v.SetDefault("batch-size", wmi.BatchSize)
	v.SetDefault("listen", ":9182")

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if cfgPath, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(cfgPath, appName))
		}
		v.SetConfigName(appName)
	}

	if err := v.ReadInConfig(); err != nil {
		return v, err
	}

	return v, nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	out, err := report.ParseFormat(v.GetString("output"))
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, errors.Wrap(err, "log-level")
	}

	threading, err := parseThreading(v.GetString("threading"))
	if err != nil {
		return nil, err
	}

	return &config{
		Namespace: v.GetString("namespace"),
		Output:    out,
		LogLevel:  level,
		Threading: threading,
		BatchSize: v.GetInt("batch-size"),
		Listen:    v.GetString("listen"),
	}, nil
}

func parseThreading(s string) (wmi.ThreadingModel, error) {
	switch strings.ToLower(s) {
	case "", "mta", "multi", "multithreaded":
		return wmi.MultiThreaded, nil
	case "sta", "apartment", "apartmentthreaded":
		return wmi.ApartmentThreaded, nil
	}

	return 0, errors.Errorf("unknown threading model %q (want multithreaded or apartment)", s)
}
