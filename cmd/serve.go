package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/prdash/internal/api"
	"github.com/joescharf/prdash/internal/daemon"
	"github.com/joescharf/prdash/internal/github"
	webui "github.com/joescharf/prdash/internal/ui"
)

var serveForce bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Long: `Start an HTTP server that serves the dashboard page and the generated
data files. Run 'prdash generate' first to produce the data.
By default it listens on port 8080 in the foreground. Use 'serve start'
to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dashboard server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background dashboard server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	serveStopCmd.Flags().BoolVar(&serveForce, "force", false, "Kill the server instead of asking it to shut down")
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	viper.SetDefault("port", 8080)
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "prdash-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "prdash-serve.log")
}

func serveRun() error {
	port := viper.GetInt("port")
	dataDir := viper.GetString("data_dir")

	assets, err := webui.Handler(dataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize dashboard handler: %w", err)
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewServer(s, github.NewClient()).Router())
	mux.Handle("/", assets)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, shutdownSignals()...)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	ui.Info("Serving dashboard at http://localhost%s (data from %s)", srv.Addr, dataDir)

	select {
	case err := <-errc:
		return err
	case <-done:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, "serve", "--port", fmt.Sprintf("%d", viper.GetInt("port")))
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	ui.Success("Dashboard server started (pid %d), logs in %s", child.Process.Pid, serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return errors.New("server is not running")
	}

	sig := sigTERM()
	if serveForce {
		sig = sigKILL()
	}
	if err := pf.Signal(sig); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	_ = pf.Remove()

	ui.Success("Dashboard server stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		ui.Info("Dashboard server is running (pid %d) on port %d", pid, viper.GetInt("port"))
		return nil
	}
	ui.Info("Dashboard server is not running")
	return nil
}
