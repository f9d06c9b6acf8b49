package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/42wim/wmix/wmi"
)

// comGuard is the part of *wmi.COM the commands use.
type comGuard interface {
	Initialized() bool
	Close() error
}

type wmix struct {
	v     *viper.Viper
	cfg   *config
	level *slog.LevelVar
	log   *slog.Logger

	stdout io.Writer
	stderr io.Writer

	initCOM func(wmi.ThreadingModel) (comGuard, error)
	driver  wmi.Driver
	now     func() time.Time
}

func newApp(stdout, stderr io.Writer) *wmix {
	level := new(slog.LevelVar)

	return &wmix{
		level:  level,
		log:    slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		stdout: stdout,
		stderr: stderr,
		initCOM: func(m wmi.ThreadingModel) (comGuard, error) {
			c, err := wmi.InitializeCOM(m)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		now: time.Now,
	}
}

// open initializes COM and connects to the configured namespace. The
// returned func releases both.
func (a *wmix) open(verbose bool) (*wmi.Session, func(), error) {
	com, err := a.initCOM(a.cfg.Threading)
	if err != nil {
		return nil, nil, err
	}

	if verbose {
		if com.Initialized() {
			fmt.Fprintln(a.stdout, "COM library initialized successfully.")
		} else {
			fmt.Fprintln(a.stdout, "COM library was already initialized (using existing initialization).")
		}
		fmt.Fprintln(a.stdout)
	}

	opts := []wmi.Option{wmi.WithLogger(a.log), wmi.WithBatchSize(a.cfg.BatchSize)}
	if a.driver != nil {
		opts = append(opts, wmi.WithDriver(a.driver))
	}

	s, err := wmi.Connect(a.cfg.Namespace, opts...)
	if err != nil {
		_ = com.Close()
		return nil, nil, err
	}
	a.log.Debug("connected", "namespace", s.Namespace(), "threading", a.cfg.Threading)

	if verbose {
		fmt.Fprintln(a.stdout, "WMI interface created successfully!")
		fmt.Fprintln(a.stdout)
	}

	return s, func() {
		if err := s.Close(); err != nil {
			a.log.Debug("close session", "err", err)
		}
		if err := com.Close(); err != nil {
			a.log.Debug("release COM", "err", err)
		}
	}, nil
}

func (a *wmix) printError(err error) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			a.printError(e)
		}
		return
	}

	var werr *wmi.Error
	if errors.As(err, &werr) {
		fmt.Fprintf(a.stderr, "WMI Error: %s\n", werr.Error())
		return
	}

	fmt.Fprintf(a.stderr, "Error: %s\n", err)
}
