package engine

import (
	"fmt"
	"log"

	"github.com/mso/pkg/autosetup"
	"github.com/mso/pkg/settings"
)

// Command is a run-control request.
type Command int

const (
	CommandStop Command = iota
	CommandStart
	CommandForceTrigger
	CommandAutoSetup
	CommandSave
	CommandRestoreDefaults
)

var commandNames = map[Command]string{
	CommandStop:            "stop",
	CommandStart:           "start",
	CommandForceTrigger:    "force",
	CommandAutoSetup:       "autosetup",
	CommandSave:            "save",
	CommandRestoreDefaults: "defaults",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps a command name to a Command.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// Command executes c.
func (e *Engine) Command(c Command) error {
	var err error
	e.cs.Do(func() { err = e.command(c) })
	if err == nil {
		log.Printf("[ENGINE] command %v", c)
	}
	return err
}

func (e *Engine) command(c Command) error {
	st := e.st
	s := &st.Settings
	switch c {
	case CommandStop:
		s.Status.Stop = true
		st.Fast.Cancel()
	case CommandStart:
		s.Status.Stop = false
		e.pending.Store(true)
	case CommandForceTrigger:
		if s.Status.Stop {
			return ErrStopped
		}
		st.Fast.ForceTrigger()
	case CommandAutoSetup:
		st.AutoSetup.Begin(s)
		e.pending.Store(true)
	case CommandSave:
		if e.opts.SettingsFile == "" {
			return ErrNoSettingsFile
		}
		out := st.AutoSetup.Persistable(s)
		if err := settings.SaveToFile(&out, e.opts.SettingsFile); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	case CommandRestoreDefaults:
		*s = settings.Default()
		st.AutoSetup = autosetup.Controller{}
		e.inMeter = false
		e.pending.Store(true)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(c))
	}
	return nil
}
