package watch

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/commit"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/identity"
	"github.com/ValentinKolb/dSync/lib/listener"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

var (
	// WatchCmd mirrors a collection and prints every change
	WatchCmd = &cobra.Command{
		Use:   "watch [collection]",
		Short: "Watch a collection and print its changes",
		Long: `Attaches a listener to a collection and prints every change until the process is interrupted (SIGINT, SIGTERM).
The listener first prints every existing document as added.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: bindFlags,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(WatchCmd)

	key := "output"
	WatchCmd.Flags().String(key, "json", util.WrapString("The output format of changes (json, yaml)"))

	key = "metrics-endpoint"
	WatchCmd.Flags().String(key, "", util.WrapString("If set, the address on which the listener metrics are served in the prometheus format (e.g. localhost:9090)"))
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

// --------------------------------------------------------------------------
// Printing mirror
// --------------------------------------------------------------------------

// event is a single printed change
type event struct {
	Time   string          `json:"time" yaml:"time"`
	Verb   string          `json:"verb" yaml:"verb"`
	Record identity.Record `json:"record,omitempty" yaml:"record,omitempty"`
	Size   int             `json:"size" yaml:"size"`
}

// printingMirror keeps a map mirror of the collection and prints every commit
type printingMirror struct {
	mu     sync.Mutex
	mirror map[string]identity.Record
	inner  commit.ICommitFunctions
	out    io.Writer
	format string
	log    logger.ILogger
}

func newPrintingMirror(out io.Writer, format string, log logger.ILogger) *printingMirror {
	m := &printingMirror{
		mirror: map[string]identity.Record{},
		out:    out,
		format: format,
		log:    log,
	}
	m.inner = commit.NewMapCommitter(m.mirror)
	return m
}

// apply runs a commit function on the mirror and prints the change
func (m *printingMirror) apply(verb string, record identity.Record, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
	err := util.WriteOutput(m.out, m.format, event{
		Time:   time.Now().Format(time.RFC3339),
		Verb:   verb,
		Record: record,
		Size:   len(m.mirror),
	})
	if err != nil {
		m.log.Errorf("printing %s change of %s failed: %v", verb, record.Path(), err)
	}
}

// commitFunctions returns the commit functions of the mirror
func (m *printingMirror) commitFunctions() commit.ICommitFunctions {
	return commit.Funcs{
		AddFn: func(r identity.Record) {
			m.apply("added", r, func() { m.inner.Add(r) })
		},
		UpdateFn: func(r identity.Record) {
			m.apply("modified", r, func() { m.inner.Update(r) })
		},
		RemoveFn: func(r identity.Record) {
			m.apply("removed", r, func() { m.inner.Remove(r) })
		},
		RemoveAllFn: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.inner.RemoveAll()
		},
	}
}

// --------------------------------------------------------------------------
// Command
// --------------------------------------------------------------------------

func run(cmd *cobra.Command, args []string) error {
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	level := util.GetLogLevel(config)
	log := common.NewLogger("watch", level, cmd.ErrOrStderr())
	log.Debugf("%s", config.String())

	database, err := util.OpenDatabase(config)
	if err != nil {
		return err
	}
	defer database.Close()

	// serve metrics
	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		srv := newMetricsServer(endpoint)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics endpoint failed: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		log.Infof("serving metrics on http://%s/metrics", endpoint)
	}

	mirror := newPrintingMirror(cmd.OutOrStdout(), viper.GetString("output"), log)
	l := listener.NewListener(database.Collection(args[0]), mirror.commitFunctions(), listener.Options{
		Name:   args[0],
		Logger: common.NewLogger(args[0], level, cmd.ErrOrStderr()),
	})

	ctx, cancel := util.Context(config)
	sub, err := l.Attach(ctx, nil, false)
	cancel()
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("could not subscribe to %s", args[0])
	}
	defer l.Detach()
	log.Infof("watching %s (subscription %s)", sub.Path(), sub.ID())

	// wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("shutting down")
	return nil
}

// newMetricsServer serves the metrics of the VictoriaMetrics default set
func newMetricsServer(endpoint string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	return &http.Server{Addr: endpoint, Handler: mux}
}
