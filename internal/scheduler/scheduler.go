package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ledble-controller/internal/core"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrBadCommand is returned for schedule commands that cannot be parsed.
var ErrBadCommand = errors.New("bad schedule command")

// ScheduleEntry defines the structure for a saved schedule.
type ScheduleEntry struct {
	ID      int    `json:"id"`
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler runs host-side cron jobs that feed the agent's command channel.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]ScheduleEntry
	commandChannel core.CommandChannel
	mu             sync.RWMutex
	schedulesFile  string
	log            *logrus.Entry
}

// NewScheduler creates a scheduler and loads persisted schedules.
func NewScheduler(cmdChan core.CommandChannel, schedulesFile string) *Scheduler {
	s := &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]ScheduleEntry),
		commandChannel: cmdChan,
		schedulesFile:  schedulesFile,
		log:            logrus.WithField("component", "scheduler"),
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Cron scheduler started.")
}

// Stop halts the cron job ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Cron scheduler stopped.")
}

// ParseCommand turns a schedule command line into an agent command.
//
//	power on|off
//	color R G B
//	brightness N
//	speed N
//	mode NAME|NUMBER
//	pattern FILE.lua
//	stop
func ParseCommand(command string) (core.Command, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return core.Command{}, fmt.Errorf("%w: empty", ErrBadCommand)
	}

	ints := func(args []string, n int) ([]interface{}, error) {
		if len(args) != n {
			return nil, fmt.Errorf("%w: %q wants %d argument(s)", ErrBadCommand, parts[0], n)
		}
		out := make([]interface{}, n)
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrBadCommand, a, err)
			}
			out[i] = v
		}
		return out, nil
	}

	args := parts[1:]
	switch strings.ToLower(parts[0]) {
	case "power":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return core.Command{}, fmt.Errorf("%w: power wants on or off", ErrBadCommand)
		}
		return core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": args[0] == "on"}}, nil
	case "color":
		v, err := ints(args, 3)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetColor, Payload: map[string]interface{}{"r": v[0], "g": v[1], "b": v[2]}}, nil
	case "brightness":
		v, err := ints(args, 1)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetBrightness, Payload: map[string]interface{}{"value": v[0]}}, nil
	case "speed":
		v, err := ints(args, 1)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetSpeed, Payload: map[string]interface{}{"value": v[0]}}, nil
	case "mode":
		if len(args) == 0 {
			return core.Command{}, fmt.Errorf("%w: mode wants a name or number", ErrBadCommand)
		}
		return core.Command{Type: core.CmdSetRgbMode, Payload: map[string]interface{}{"mode": strings.Join(args, " ")}}, nil
	case "pattern":
		if len(args) != 1 {
			return core.Command{}, fmt.Errorf("%w: pattern wants a file name", ErrBadCommand)
		}
		return core.Command{Type: core.CmdRunPattern, Payload: map[string]interface{}{"name": args[0]}}, nil
	case "stop":
		return core.Command{Type: core.CmdStopPattern}, nil
	}
	return core.Command{}, fmt.Errorf("%w: unknown verb %q", ErrBadCommand, parts[0])
}

// Add validates and registers a new cron job.
func (s *Scheduler) Add(spec, command string) (int, error) {
	if _, err := ParseCommand(command); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.execute(command) })
	if err != nil {
		return 0, fmt.Errorf("schedule '%s': %w", spec, err)
	}
	s.store[id] = ScheduleEntry{ID: int(id), Spec: spec, Command: command}
	s.save()
	s.log.Infof("Added schedule (ID %d): %s -> %s", id, spec, command)
	return int(id), nil
}

// Remove deletes a cron job.
func (s *Scheduler) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	s.save()
	s.log.Infof("Removed schedule (ID %d)", id)
}

// GetAll returns the current schedules ordered by ID.
func (s *Scheduler) GetAll() []ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]ScheduleEntry, 0, len(s.store))
	for _, v := range s.store {
		entries = append(entries, v)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (s *Scheduler) execute(command string) {
	s.log.Infof("Executing scheduled command: %s", command)
	cmd, err := ParseCommand(command)
	if err != nil {
		s.log.Errorf("Skipping scheduled command: %v", err)
		return
	}
	s.commandChannel <- cmd
}

// save persists the store; callers hold mu.
func (s *Scheduler) save() {
	entries := make([]ScheduleEntry, 0, len(s.store))
	for _, v := range s.store {
		entries = append(entries, ScheduleEntry{Spec: v.Spec, Command: v.Command})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Spec != entries[j].Spec {
			return entries[i].Spec < entries[j].Spec
		}
		return entries[i].Command < entries[j].Command
	})
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.log.Errorf("Error marshalling schedules: %v", err)
		return
	}
	if err := os.WriteFile(s.schedulesFile, data, 0644); err != nil {
		s.log.Errorf("Error writing schedules file: %v", err)
	}
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.schedulesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorf("Error reading schedule file: %v", err)
		}
		return
	}

	var entries []ScheduleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Errorf("Error unmarshalling schedule file: %v", err)
		return
	}

	s.log.Infof("Loading %d schedules from file '%s'...", len(entries), s.schedulesFile)
	for _, entry := range entries {
		command := entry.Command
		if _, err := ParseCommand(command); err != nil {
			s.log.Errorf("Dropping stored schedule: %v", err)
			continue
		}
		newID, err := s.cron.AddFunc(entry.Spec, func() { s.execute(command) })
		if err != nil {
			s.log.Errorf("Error re-adding schedule from file: %v", err)
			continue
		}
		s.store[newID] = ScheduleEntry{ID: int(newID), Spec: entry.Spec, Command: command}
	}
}
