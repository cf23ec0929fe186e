package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"gosrix/reader"
	"gosrix/session"
	"gosrix/srix"
)

var myBuild string

func main() {
	cfgfile := flag.String("cfg", defaultConfigFile, "Config file")
	list := flag.Bool("list", false, "List serial ports and exit")
	dumpTo := flag.String("dump", "", "Read the tag, save its image to `file` and exit")
	restoreFrom := flag.String("restore", "", "Read the tag, write the image in `file` to it and exit")
	tuiFlag := flag.Bool("tui", false, "Run the terminal UI")
	flag.Parse()

	if *list {
		if err := listPorts(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "cfg" {
			explicit = true
		}
	})
	cfg, err := loadConfig(*cfgfile, explicit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	oneShot := *dumpTo != "" || *restoreFrom != ""
	useTUI := !oneShot && (*tuiFlag || cfg.TUI)
	if useTUI && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "TUI needs a terminal on stdin, running headless")
		useTUI = false
	}

	log, err := newLogger(cfg, useTUI)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	srix.SetLogger(log.Named("srix"))
	log.Info("gosrix starting", zap.String("build", myBuild), zap.String("client_id", cfg.ClientID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *dumpTo, *restoreFrom, useTUI); err != nil {
		log.Error("Exiting", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *zap.Logger, dumpTo, restoreFrom string, useTUI bool) error {
	transport, err := reader.New(ctx, cfg.Reader, log.Named("reader"))
	if err != nil {
		return fmt.Errorf("init reader: %w", err)
	}
	defer transport.Close()

	sess := session.New(transport, session.WithLogger(log.Named("session")))

	switch {
	case dumpTo != "":
		return dumpTag(ctx, sess, dumpTo)
	case restoreFrom != "":
		return restoreTag(ctx, sess, restoreFrom, log)
	}

	app, err := newApp(ctx, cfg, log, sess, useTUI)
	if err != nil {
		return err
	}
	return app.Run()
}

func listPorts() error {
	ports, err := reader.List()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func dumpTag(ctx context.Context, sess *session.Session, path string) error {
	if err := sess.Read(ctx); err != nil {
		return err
	}
	if err := sess.Export(path); err != nil {
		return err
	}
	snap := sess.Snapshot()
	fmt.Printf("Saved tag %016X to %s\n", snap.UID, path)
	return nil
}

// restoreTag writes an image back. On a personalized tag only the generic
// blocks are written.
func restoreTag(ctx context.Context, sess *session.Session, path string, log *zap.Logger) error {
	if err := sess.Read(ctx); err != nil {
		return err
	}
	if sess.Snapshot().Locked {
		log.Warn("Tag is personalized, restoring generic blocks only")
	}

	n, err := sess.Restore(ctx, path)
	switch {
	case errors.Is(err, session.ErrNoChanges):
		fmt.Println("Tag already matches the image")
		return nil
	case err != nil:
		return fmt.Errorf("restore after %d blocks: %w", n, err)
	}
	fmt.Printf("Restored %d blocks from %s\n", n, path)
	return nil
}
