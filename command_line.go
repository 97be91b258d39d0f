package tpccbench

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment variables prefixed with "TPCC_" override properties, e.g.
// "TPCC_NUM_WAREHOUSE".
const envVarPrefix = "tpcc"

// CommandLine holds the state shared by the subcommands: the viper
// instance the flags are bound to, the config file and -p overrides.
type CommandLine struct {
	viper     *viper.Viper
	cfgFile   string
	overrides []string
	in        io.Reader
	out       io.Writer
}

func NewCommandLine(in io.Reader, out io.Writer) *CommandLine {
	return &CommandLine{
		viper: viper.New(),
		in:    in,
		out:   out,
	}
}

// FlagName maps a property to its command line flag.
func FlagName(property string) string {
	return strings.ReplaceAll(property, "_", "-")
}

var flagUsages = map[string]string{
	PropertyStore:                 "store to benchmark",
	PropertyLogLevel:              "log level: " + strings.Join(log.LevelNames(), ", "),
	PropertySeed:                  "seed of the random sources",
	PropertyNumWarehouse:          "number of warehouses",
	PropertyStartWarehouse:        "first warehouse to load",
	PropertyEndWarehouse:          "last warehouse to load, 0 means num-warehouse",
	PropertyUseTableIndex:         "resolve customers and orders through the secondary tables",
	PropertyDirectory:             "directory of the CSV files to load, empty to generate the dataset",
	PropertyLoadThreads:           "number of loader goroutines",
	PropertySkipItemLoad:          "do not load the item table",
	PropertyLoadOverwrite:         "read every row before writing it",
	PropertyCreateSchema:          "create the tables before loading",
	PropertyLoadQueueSize:         "capacity of the loader record queue",
	PropertyPreload:               "load the dataset into the store first",
	PropertyRateNewOrder:          "percentage of New-Order transactions",
	PropertyRatePayment:           "percentage of Payment transactions",
	PropertyRateOrderStatus:       "percentage of Order-Status transactions",
	PropertyRateDelivery:          "percentage of Delivery transactions",
	PropertyRateStockLevel:        "percentage of Stock-Level transactions",
	PropertyNPOnly:                "run New-Order and Payment only, half each",
	PropertyNumThreads:            "number of worker goroutines",
	PropertyDuration:              "measured run time, seconds or a duration",
	PropertyRampUpTime:            "unmeasured warm up time, seconds or a duration",
	PropertyTimes:                 "run that many serial transactions instead of a timed run",
	PropertyBackoff:               "pause before retrying a conflict, milliseconds or a duration",
	PropertyWarehouseDistribution: "home warehouse distribution: uniform, zipfian or hotspot",
	PropertyStatusInterval:        "progress report interval, seconds or a duration",
	PropertyMeasurementType:       "histogram, hdrhistogram or hdrhistogram+histogram",
	PropertyExporter:              "measurement exporter: text, json or jsonarray",
	PropertyExportFile:            "write measurements to this file instead of stdout",
}

// Command builds the cobra command tree: load, run and shell.
func (self *CommandLine) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "tpcc-bench",
		Short: "TPC-C workload driver",
		Long: "TPC-C workload driver: loads the TPC-C dataset and runs the five transactions " +
			"against a transactional store.\n\nStores: " + strings.Join(StoreNames(), ", "),
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&self.cfgFile, "config", "c", "", "config file: properties, yaml, json or toml")
	flags.StringVar(&self.cfgFile, "properties", "", "alias of --config")
	flags.StringArrayVarP(&self.overrides, "property", "p", nil, "set a property, name=value")

	properties := make([]string, 0, len(flagUsages))
	for property := range flagUsages {
		properties = append(properties, property)
	}
	sort.Strings(properties)
	for _, property := range properties {
		def := PropertyDefaults[property]
		if b, err := strconv.ParseBool(def); err == nil {
			flags.Bool(FlagName(property), b, flagUsages[property])
		} else {
			flags.String(FlagName(property), def, flagUsages[property])
		}
	}
	flags.VisitAll(func(flag *pflag.Flag) {
		switch flag.Name {
		case "config", "properties", "property":
		default:
			self.viper.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), flag)
		}
	})
	for k, def := range PropertyDefaults {
		self.viper.SetDefault(k, def)
	}
	self.viper.SetEnvPrefix(envVarPrefix)
	self.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	self.viper.AutomaticEnv()

	root.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Load the dataset, generated or from CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.execute(func(config *Config, logger log.Logger) ([]Client, error) {
				return []Client{NewLoader(config, logger, self.out)}, nil
			})
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the transaction mix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.execute(func(config *Config, logger log.Logger) ([]Client, error) {
				out, err := self.exportTarget(config)
				if err != nil {
					return nil, err
				}
				return []Client{NewRunner(config, logger, out)}, nil
			})
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Inspect and patch rows interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.execute(func(config *Config, logger log.Logger) ([]Client, error) {
				clients := make([]Client, 0, 2)
				if config.Preload {
					clients = append(clients, NewLoader(config, logger, self.out))
				}
				return append(clients, NewShell(logger, self.in, self.out)), nil
			})
		},
	})
	return root
}

// Properties merges, from lowest to highest precedence: flag defaults,
// the config file, environment variables, changed flags and -p overrides.
func (self *CommandLine) Properties() (Properties, error) {
	props := NewProperties()
	if self.cfgFile != "" {
		fileProps, err := LoadProperties(self.cfgFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fileProps {
			self.viper.SetDefault(k, v)
		}
	}
	props.Merge(propertiesOf(self.viper))
	for _, o := range self.overrides {
		nv := strings.SplitN(o, "=", 2)
		if len(nv) != 2 || nv[0] == "" {
			return nil, store.NewValidationError("invalid property %q, expected name=value", o)
		}
		props.Add(strings.ToLower(nv[0]), nv[1])
	}
	return props, nil
}

func (self *CommandLine) exportTarget(config *Config) (io.WriteCloser, error) {
	if config.ExportFile == "" {
		return stdout{}, nil
	}
	f, err := os.Create(config.ExportFile)
	if err != nil {
		return nil, errors.Wrapf(err, "create export file %s", config.ExportFile)
	}
	return f, nil
}

func (self *CommandLine) execute(newClients func(config *Config, logger log.Logger) ([]Client, error)) error {
	props, err := self.Properties()
	if err != nil {
		return err
	}
	config, err := NewConfig(props)
	if err != nil {
		return err
	}
	logger, err := config.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	OutputProperties(logger, props)

	s, err := NewStore(config.Store, props, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	clients, err := newClients(config, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	for _, c := range clients {
		if err := c.Main(ctx, s); err != nil {
			logger.Error("command failed", "error", err)
			return err
		}
	}
	return nil
}

// Main runs the command line against the process arguments. Bindings to
// external stores must be registered before.
func Main() {
	if err := NewCommandLine(os.Stdin, os.Stdout).Command().Execute(); err != nil {
		os.Exit(1)
	}
}
