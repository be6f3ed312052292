package main
/*
 chordmap
 Chorded key remapper for the Linux console and desktop, working on raw evdev input.
/////////////////////////////////////////////////////////////////////////////
 Copyright (C) 2020-2021 Dmitry Svyatogorov ds@vo-ix.ru
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU Affero General Public License as
    published by the Free Software Foundation, either version 3 of the
    License, or (at your option) any later version.
    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU Affero General Public License for more details.
    You should have received a copy of the GNU Affero General Public License
    along with this program.  If not, see <http://www.gnu.org/licenses/>.
/////////////////////////////////////////////////////////////////////////////

  Every keyboard is grabbed and its events are folded through a binding table:
a key pressed together with a partner (a chord), tapped alone, or held long
emits up to three keys on a virtual keyboard. Anything unbound passes through.

  Bindings live in a small line-oriented text file ("chordmap.txt"), reloaded
on change, on SIGHUP, or from the keyboard itself. ScrollLock cycles
on / off / diagnostic / reload. Daemon settings are in "chordmap.toml".

!!! This is in fact a low-level keylogger together with a virtual keyboard. !!!
  So it must run with root privileges (or access to /dev/input and /dev/uinput).

Referrers:
 https://www.kernel.org/doc/html/latest/input/event-codes.html
 https://www.kernel.org/doc/html/latest/input/uinput.html
 http://www.win.tue.nl/~aeb/linux/kbd/scancodes-1.html
*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.design/x/clipboard"

	"chordmap/config"
	"chordmap/device"
	"chordmap/engine"
	"chordmap/exec"
	"chordmap/loader"
	"chordmap/scancodes"
	"chordmap/settings"
	"chordmap/watch"
)

func main() {
	flags, err := settings.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	switch {
	case flags.Debug:
		log.SetLevel(log.DebugLevel)
	case flags.Verbose:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}

	conf, err := settings.Load(flags.Config)
	switch {
	case settings.IsNotExist(err):
		log.Warnf("%v, using defaults", err)
		conf = settings.Default()
	case err != nil:
		log.Fatal(err)
	}
	flags.Apply(conf)
	log.Debugf("settings: %+v", *conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.Test {
		err = test(ctx, conf)
	} else {
		err = serve(ctx, conf)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// test only prints what the keyboards send. Nothing is grabbed.
func test(ctx context.Context, conf *settings.Settings) error {
	search := conf.Devices.Search
	if conf.Devices.Test != "" {
		search = conf.Devices.Test
	}
	capture := device.NewCapture(search, conf.Devices.BypassRE,
		device.WithGrab(false),
		device.WithRespawn(conf.RespawnInterval()),
		device.WithLogger(log.WithField("component", "device")))

	batches := make(chan device.Batch, 16)
	go capture.Run(ctx, batches)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return ctx.Err()
		case b := <-batches:
			for _, in := range b.Inputs {
				if in.Bypass {
					fmt.Fprintf(os.Stderr, ",evdev_%d:%d", in.Code, in.Value)
					continue
				}
				fmt.Fprintf(os.Stderr, ",%s:%d", scancodes.Name(in.Event.Code), in.Value)
			}
		}
	}
}

func serve(ctx context.Context, conf *settings.Settings) error {
	km := scancodes.DefaultKeyMap()

	var hook *exec.Hook
	if conf.Reload.Hook != "" {
		var err error
		if hook, err = exec.NewHook(conf.Reload.Hook, conf.HookTimeout(), log.WithField("component", "hook")); err != nil {
			return fmt.Errorf("[reload] hook: %w", err)
		}
		log.Infof("reload hook: %v", hook)
	}

	// Attach virtual keyboard
	out, err := device.Open(conf.Output.Driver, conf.Output.Name, log.WithField("component", conf.Output.Driver))
	if err != nil {
		return err
	}
	defer out.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	ld := loader.New(loader.FileSource{Path: conf.Bindings.Path}, km,
		loader.WithRequeue(conf.Bindings.Requeue),
		loader.WithLogger(log.WithField("component", "loader")),
		loader.WithOnPublish(func(s *config.Snapshot) {
			if hook == nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				hook.Fire(ctx, "reload", s.Table.Len(), len(s.Warnings))
			}()
		}))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ld.Run(ctx)
	}()
	ld.Request()

	if conf.Bindings.Watch {
		w, err := watch.New(conf.Bindings.Path, ld,
			watch.WithDebounce(conf.Debounce()),
			watch.WithLogger(log.WithField("component", "watch")))
		if err != nil {
			log.Warnf("hot reload disabled: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = w.Run(ctx)
			}()
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if !ld.Request() {
					log.Info("SIGHUP: reload already running")
				}
			}
		}
	}()

	opts := []engine.Option{
		engine.WithLogger(log.WithField("component", "engine")),
		engine.WithModeKey(conf.Keys.ModeCode),
		engine.WithStatusKeys(conf.Keys.ParamsCode, conf.Keys.StateCode),
		engine.WithModeObserver(func(m engine.Mode) { log.Infof("mode: %v", m) }),
	}
	if conf.Status.Clipboard {
		if err := clipboard.Init(); err != nil {
			log.Warnf("status clipboard disabled: %v", err)
		} else {
			opts = append(opts, engine.WithStatusObserver(toClipboard))
		}
	}
	eng := engine.New(ld, km, out, opts...)

	// Start keyloggers
	batches := make(chan device.Batch, 64)
	capture := device.NewCapture(conf.Devices.Search, conf.Devices.BypassRE,
		device.WithRespawn(conf.RespawnInterval()),
		device.WithLogger(log.WithField("component", "device")))
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = capture.Run(ctx, batches)
	}()

	return device.Pipe(ctx, batches, eng, out, log.WithField("component", "pipe"))
}

// toClipboard mirrors a diagnostic status line, with the space key markers
// turned back into spaces.
func toClipboard(status string) {
	clipboard.Write(clipboard.FmtText, []byte(strings.ReplaceAll(status, "S", " ")))
}
