// Package main is the mailhook module verifier. It loads the configured
// plugins, initializes them and drives one synthetic SMTP transaction through
// every checkpoint and lifecycle event, reporting the outcome.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dshills/mailhook/internal/config"
	"github.com/dshills/mailhook/internal/dispatch"
	"github.com/dshills/mailhook/internal/module"
	"github.com/dshills/mailhook/internal/plugin"
	"github.com/dshills/mailhook/internal/session"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	pluginPath string
	sender     string
	recipient  string
	size       int64
	tls        bool
}

func run() int {
	opts, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("mailhook-verify %s (%s)\n", version, commit)
		return 0
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevel())

	reg := module.NewRegistry(module.WithLogger(log))
	if err := reg.Register(dispatch.Core(cfg.Banner, cfg.MaxMessageSize)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	hosts, err := loadPlugins(cfg, opts.pluginPath, reg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		for _, h := range hosts {
			h.Close()
		}
	}()

	if err := reg.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.WithField("modules", reg.Names()).Info("registry initialized")

	return verify(reg, opts, log)
}

// loadPlugins loads every configured module and registers its descriptor in
// configuration order.
func loadPlugins(cfg *config.Config, extraPath string, reg *module.Registry, log *logrus.Logger) ([]*plugin.Host, error) {
	var loaderOpts []plugin.LoaderOption
	if len(cfg.Plugins.Paths) > 0 {
		loaderOpts = append(loaderOpts, plugin.WithPaths(cfg.Plugins.Paths...))
	}
	loader := plugin.NewLoader(loaderOpts...)
	if extraPath != "" {
		loader.AddPath(extraPath)
	}

	hosts := make([]*plugin.Host, 0, len(cfg.Plugins.Modules))
	for _, entry := range cfg.Plugins.Modules {
		info, err := loader.FindPlugin(entry.Name)
		if err != nil {
			return hosts, err
		}

		host, err := plugin.NewHost(info.Manifest)
		if err != nil {
			return hosts, err
		}
		if err := host.Load(); err != nil {
			return hosts, err
		}

		desc, err := host.Descriptor()
		if err != nil {
			host.Close()
			return hosts, err
		}
		if err := reg.Register(desc, entry.Args...); err != nil {
			host.Close()
			return hosts, err
		}

		hosts = append(hosts, host)
		log.WithFields(logrus.Fields{
			"module": desc.Name,
			"kind":   desc.Kind.String(),
			"path":   info.Path,
		}).Info("plugin loaded")
	}
	return hosts, nil
}

// verify runs one synthetic transaction end to end. Returns 0 when every
// checkpoint passed, 1 on rejection or leak.
func verify(reg *module.Registry, opts options, log *logrus.Logger) int {
	ctx := session.New()
	txn := dispatch.NewTransaction(reg, ctx, dispatch.WithLogger(log))

	txn.Emit(module.EventConnectionOpened)

	steps := []struct {
		checkpoint module.Checkpoint
		prepare    func() error
		enabled    bool
	}{
		{
			checkpoint: module.CheckpointConnect,
			enabled:    true,
		},
		{
			checkpoint: module.CheckpointStartTLS,
			enabled:    opts.tls,
			prepare: func() error {
				ctx.UpgradeTLS("TLSv1.3", "TLS_AES_256_GCM_SHA384")
				return nil
			},
		},
		{
			checkpoint: module.CheckpointMailFrom,
			enabled:    true,
			prepare: func() error {
				if err := ctx.SetSender(opts.sender); err != nil {
					return err
				}
				if err := ctx.AddRecipient(opts.recipient); err != nil {
					return err
				}
				if opts.size > 0 {
					return ctx.Set(dispatch.SizeKey, strconv.FormatInt(opts.size, 10))
				}
				return nil
			},
		},
		{
			checkpoint: module.CheckpointData,
			enabled:    true,
			prepare: func() error {
				ctx.BeginData(sampleMessage(opts))
				return nil
			},
		},
	}

	rejected := false
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if step.prepare != nil {
			if err := step.prepare(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
		}

		result, err := txn.Checkpoint(step.checkpoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("%-8s  %s\n", step.checkpoint, result.Reply)
		if !result.Pass {
			fmt.Printf("rejected by %s\n", result.RejectedBy)
			rejected = true
			break
		}
	}

	if !rejected {
		ctx.SetDelivery(session.Delivery{
			MessageID: newMessageID(ctx),
			Domain:    "example.net",
			Server:    "mx.example.net",
			Attempts:  1,
		})
		txn.Emit(module.EventDeliveryAttempt)
		txn.Emit(module.EventDeliverySuccess)
	}
	txn.Emit(module.EventConnectionClosed)

	if leaked := ctx.Close(); leaked > 0 {
		log.WithField("count", leaked).Warn("boundary values leaked by modules")
		return 1
	}
	if rejected {
		return 1
	}
	fmt.Printf("final state: %s\n", txn.State())
	return 0
}

func newMessageID(ctx *session.Context) string {
	id := ctx.ID()
	defer id.Release()
	return id.Value()
}

func sampleMessage(opts options) []byte {
	return []byte("From: " + opts.sender + "\r\n" +
		"To: " + opts.recipient + "\r\n" +
		"Subject: mailhook verification\r\n" +
		"\r\n" +
		"This message exercises the loaded modules.\r\n")
}

func parseFlags() (options, bool) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.pluginPath, "plugins", "", "Additional plugin search path")
	flag.StringVar(&opts.sender, "from", "sender@example.org", "Envelope sender for the synthetic transaction")
	flag.StringVar(&opts.recipient, "rcpt", "rcpt@example.net", "Envelope recipient for the synthetic transaction")
	flag.Int64Var(&opts.size, "size", 0, "Declared SIZE parameter in bytes (0 = none)")
	flag.BoolVar(&opts.tls, "tls", false, "Run the STARTTLS checkpoint")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	return opts, showVersion
}
