package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/escpos-feed-printer/config"
	"github.com/nixxel-company-limited/escpos-feed-printer/logging"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"transport":     "printer.transport",
	"host":          "printer.host",
	"vendor-id":     "printer.vendor_id",
	"product-id":    "printer.product_id",
	"policy":        "printer.policy",
	"width":         "printer.width",
	"cache":         "cache.path",
	"cache-backend": "cache.backend",
	"scratch-dir":   "scratch.dir",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "feedprinter",
		Short: "Print a content feed on an ESC/POS thermal printer",
		Long: `feedprinter polls a content feed and prints every new item once on a
thermal receipt printer attached over USB or reachable on TCP port 9100.`,
		Example: `  feedprinter watch --transport network --host 192.168.1.50
  feedprinter text "Front desk" "Back in five minutes" --transport usb
  feedprinter image https://example.com/logo.png --transport usb`,
		Version:           fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to config file (default: ./feedprinter.yaml or $HOME/.config/feedprinter/feedprinter.yaml)")
	flags.String("transport", "", "printer transport: usb or network")
	flags.String("host", "", "network printer host, port 9100 is implied")
	flags.Uint16("vendor-id", 0, "USB vendor id (0 picks the first printer)")
	flags.Uint16("product-id", 0, "USB product id (0 picks the first printer)")
	flags.String("policy", "", "connection policy: auto, per-job or persistent")
	flags.Int("width", 0, "printable width in dots")
	flags.String("cache", "", "seen-items cache file")
	flags.String("cache-backend", "", "cache backend: json or bolt")
	flags.String("scratch-dir", "", "directory for temporary image files")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format: console or json")
	bindFlags(a.v, flags)

	root.AddCommand(
		a.watchCommand(),
		a.textCommand(),
		a.imageCommand(),
		a.usbCommand(),
		a.relayCommand(),
	)
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// setup loads the configuration and builds the logger before any
// subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	a.cfg = cfg
	a.logger = logger
	if a.v.ConfigFileUsed() != "" {
		a.logger.Debug().Str("file", a.v.ConfigFileUsed()).Msg("config loaded")
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "feedprinter: %v\n", err)
		os.Exit(1)
	}
}
