// Package lua runs user supplied Lua patterns against an LED strip.
package lua

import (
	"context"
	"errors"
	"sync"
	"time"

	"ledble-controller/internal/core"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// Light is the part of the strip a pattern may drive.
type Light interface {
	SetRGB(ctx context.Context, r, g, b int) error
	SetBrightness(ctx context.Context, brightness int) error
	SetPower(ctx context.Context, on bool) error
	SetSpeed(ctx context.Context, speed int) error
	SetRGBMode(ctx context.Context, mode int) error
}

// cmdType defines the type of engine command.
type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdRunString
	cmdStop
)

// engineCmd represents a command sent to the Lua engine.
type engineCmd struct {
	kind cmdType
	name string
	code string
	done chan struct{}
}

const stopTimeout = 2 * time.Second

// Engine manages the Lua scripting environment using a single worker goroutine
// to ensure only one pattern runs at a time.
type Engine struct {
	light       Light
	patternsDir string
	eventBus    *core.EventBus
	log         *logrus.Entry

	cmdChan   chan engineCmd
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEngine creates a new Lua engine and starts its background worker.
func NewEngine(light Light, patternsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		light:       light,
		patternsDir: patternsDir,
		eventBus:    eb,
		log:         logrus.WithField("component", "lua"),
		cmdChan:     make(chan engineCmd, 10),
		quit:        make(chan struct{}),
	}

	e.wg.Add(1)
	go e.runLoop()

	return e
}

// runLoop is the main worker loop that processes engine commands sequentially.
func (e *Engine) runLoop() {
	defer e.wg.Done()

	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(stopTimeout):
			e.log.Warn("Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}

	for {
		var cmd engineCmd
		select {
		case <-e.quit:
			stopCurrent()
			return
		case cmd = <-e.cmdChan:
		}

		stopCurrent()
		if cmd.kind == cmdStop {
			if cmd.done != nil {
				close(cmd.done)
			}
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		currentCancel = cancel
		scriptDone = make(chan struct{})

		go func(cmd engineCmd, ctx context.Context, done chan struct{}) {
			defer close(done)
			switch cmd.kind {
			case cmdRunFile:
				e.execute(ctx, cmd.name, func(L *lua.LState) error { return L.DoFile(cmd.code) })
			case cmdRunString:
				e.execute(ctx, cmd.name, func(L *lua.LState) error { return L.DoString(cmd.code) })
			}
		}(cmd, ctx, scriptDone)
	}
}

// Close stops the running pattern and the worker.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	e.wg.Wait()
}

// StopCurrentPattern stops the currently running script if any.
func (e *Engine) StopCurrentPattern() {
	select {
	case e.cmdChan <- engineCmd{kind: cmdStop}:
	default:
		e.log.Warn("Command channel full, could not send stop command")
	}
}

// StopAndWait stops the running script and returns once it has exited, so
// the caller owns the strip afterwards.
func (e *Engine) StopAndWait() {
	done := make(chan struct{})
	select {
	case e.cmdChan <- engineCmd{kind: cmdStop, done: done}:
	case <-e.quit:
		return
	}
	select {
	case <-done:
	case <-e.quit:
	}
}

// RunPattern queues a pattern file for execution, replacing the running one.
func (e *Engine) RunPattern(name string) error {
	scriptPath, err := e.GetPatternPath(name)
	if err != nil {
		return err
	}

	e.cmdChan <- engineCmd{
		kind: cmdRunFile,
		name: name,
		code: scriptPath,
	}
	return nil
}

// ExecuteString queues a one-off Lua snippet, replacing the running pattern.
func (e *Engine) ExecuteString(code string) {
	e.cmdChan <- engineCmd{
		kind: cmdRunString,
		name: "single line command",
		code: code,
	}
}

func (e *Engine) publishRunning(name string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(core.Event{
		Type:    core.PatternChangedEvent,
		Payload: map[string]interface{}{"running": name},
	})
}

// execute runs Lua code in a fresh state bound to ctx.
func (e *Engine) execute(ctx context.Context, name string, executor func(*lua.LState) error) {
	log := e.log.WithField("pattern", name)
	log.Info("Starting pattern")
	e.publishRunning(name)

	defer func() {
		log.Info("Pattern finished")
		e.publishRunning("")
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	newBindings(e.light, ctx, log).register(L)

	if err := executor(L); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Info("Pattern execution was canceled")
		} else {
			log.Errorf("Error executing pattern: %v", err)
		}
	}
}
