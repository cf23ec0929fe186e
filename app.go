package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gosrix/buttons"
	"gosrix/eventpipe"
	"gosrix/indicator"
	"gosrix/mqtt"
	"gosrix/session"
	"gosrix/srix"
	"gosrix/tui"
)

// App holds the node state and dependencies.
type App struct {
	cfg       Config
	log       *zap.Logger
	sess      *session.Session
	indicator indicator.Indicator
	mqtt      *mqtt.Client
	pipe      *eventpipe.EventPipe
	buttons   buttons.Source
	program   *tea.Program
	ctx       context.Context
	cancel    context.CancelFunc
}

func newApp(ctx context.Context, cfg Config, log *zap.Logger, sess *session.Session, useTUI bool) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	app := &App{
		cfg:    cfg,
		log:    log,
		sess:   sess,
		ctx:    ctx,
		cancel: cancel,
	}

	var err error
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init indicator: %w", err)
	}
	app.indicator.ConnectionLost() // until the broker answers

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
		OnCommand:    app.onMQTTCommand,
	}, log.Named("mqtt"))
	if err != nil {
		app.release()
		return nil, fmt.Errorf("init MQTT: %w", err)
	}

	app.pipe, err = eventpipe.New(cfg.EventPipe, app.onPipeCommand, log.Named("eventpipe"))
	if err != nil {
		app.release()
		return nil, fmt.Errorf("init event pipe: %w", err)
	}

	if useTUI {
		app.program = tui.NewProgram(ctx, sess)
		sess.AddObserver(tui.Observer{Program: app.program})
	}

	app.buttons, err = buttons.New(cfg.Buttons, app.onButton, log.Named("buttons"))
	if err != nil {
		app.release()
		return nil, fmt.Errorf("init buttons: %w", err)
	}

	sess.AddObserver(indicator.Observer{Indicator: app.indicator})
	sess.AddObserver(session.ObserverFunc(app.publish))
	return app, nil
}

// Run serves until the context is cancelled or the TUI quits.
func (app *App) Run() error {
	defer app.release()

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			app.log.Error("MQTT connect", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(app.ctx)
	g.Go(func() error { return app.tagListener(ctx) })
	g.Go(func() error { return app.pingSender(ctx) })
	if app.pipe != nil {
		g.Go(func() error { return app.pipe.Run(ctx) })
	}
	if app.program != nil {
		g.Go(func() error {
			_, err := app.program.Run()
			app.cancel()
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	app.log.Info("Shutting down")
	return err
}

func (app *App) release() {
	app.cancel()
	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
	if app.pipe != nil {
		app.pipe.Close()
	}
	if app.buttons != nil {
		app.buttons.Release()
	}
	if app.indicator != nil {
		app.indicator.Shutdown()
		app.indicator.Release()
	}
}

// tagListener polls for tags entering and leaving the field. A tag that
// leaves drops the loaded memory.
func (app *App) tagListener(ctx context.Context) error {
	ticker := time.NewTicker(app.cfg.pollInterval())
	defer ticker.Stop()

	was := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		present, ok, err := app.sess.Present(ctx)
		if !ok {
			app.log.Info("Reader cannot sense tags, presence polling off")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			app.log.Warn("Tag presence", zap.Error(err))
			continue
		}

		switch {
		case present && !was:
			app.log.Info("Tag entered field")
			if app.cfg.AutoRead {
				app.sess.Read(ctx)
			}
		case !present && was:
			app.log.Info("Tag left field")
			app.sess.Forget()
		}
		was = present
	}
}

func (app *App) pingSender(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(app.cfg.PingSecs) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			app.mqtt.PublishPing(app.sess.Snapshot().State)
		}
	}
}

func (app *App) onMQTTConnect() {
	if app.sess.Snapshot().State == srix.StateUninitialized {
		app.indicator.Idle()
		return
	}
	indicator.Show(app.indicator, session.Event{Type: session.EventRead, Snapshot: app.sess.Snapshot()})
}

func (app *App) onMQTTDisconnect() {
	app.indicator.ConnectionLost()
}

func (app *App) onMQTTCommand(cmd mqtt.Command) {
	switch cmd.Action {
	case mqtt.ActionRead:
		app.sess.Read(app.ctx)
	case mqtt.ActionWrite:
		app.write()
	case mqtt.ActionModify:
		if err := app.sess.Modify(cmd.Block, cmd.Value); err != nil {
			app.log.Warn("Remote modify", zap.Int("block", cmd.Block), zap.Error(err))
		}
	}
}

func (app *App) onPipeCommand(cmd eventpipe.Command) {
	var err error
	switch cmd.Kind {
	case eventpipe.KindRead:
		err = app.sess.Read(app.ctx)
	case eventpipe.KindWrite:
		app.write()
	case eventpipe.KindSet:
		err = app.sess.Modify(cmd.Block, cmd.Value)
	case eventpipe.KindDump:
		err = app.sess.Export(cmd.Path)
	case eventpipe.KindRestore:
		_, err = app.sess.Restore(app.ctx, cmd.Path)
		if errors.Is(err, session.ErrNoChanges) {
			err = nil
		}
	case eventpipe.KindButton:
		app.onButton(cmd.Button)
	}
	if err != nil {
		app.log.Warn("Pipe command failed", zap.String("command", string(cmd.Kind)), zap.Error(err))
	}
}

// onButton feeds the TUI. Headless, select reads the tag.
func (app *App) onButton(b buttons.Button) {
	if app.program != nil {
		app.program.Send(tui.ButtonMsg{Button: b})
		return
	}
	if b == buttons.Select {
		app.sess.Read(app.ctx)
	}
}

func (app *App) write() {
	if _, err := app.sess.Write(app.ctx); errors.Is(err, session.ErrNoChanges) {
		app.log.Info("No change to write")
	}
}

// publish reports session events on the status topics.
func (app *App) publish(e session.Event) {
	switch e.Type {
	case session.EventRead, session.EventImported:
		app.mqtt.PublishTag(e.Snapshot, true)
	case session.EventModified, session.EventLost:
		app.mqtt.PublishTag(e.Snapshot, false)
	case session.EventWritten:
		app.mqtt.PublishWrite(mqtt.NewWriteStatus(e.Snapshot, e.Written, nil))
	case session.EventFailed:
		if e.Op == "write" {
			app.mqtt.PublishWrite(mqtt.NewWriteStatus(e.Snapshot, e.Written, e.Err))
		}
	}
}
