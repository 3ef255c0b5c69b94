// Package state holds the date range, device filter and active tab shared by
// every view, plus the per-view generation counters that keep stale fetch
// results from being applied.
package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"nlbwdash/internal/daterange"
)

type Tab string

const (
	TabDashboard    Tab = "dashboard"
	TabActivity     Tab = "activity"
	TabDevices      Tab = "devices"
	TabCharts       Tab = "charts"
	TabComparison   Tab = "comparison"
	TabAchievements Tab = "achievements"
)

var ErrUnknownTab = errors.New("unknown tab")

func ParseTab(s string) (Tab, error) {
	switch t := Tab(strings.ToLower(s)); t {
	case TabDashboard, TabActivity, TabDevices, TabCharts, TabComparison, TabAchievements:
		return t, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownTab)
}

// Field is a bit set of state fields.
type Field uint8

const (
	FieldRange Field = 1 << iota
	FieldDevices
	FieldTab

	FieldNone Field = 0
	FieldAll        = FieldRange | FieldDevices | FieldTab
)

func (f Field) Has(other Field) bool { return f&other != 0 }

type Snapshot struct {
	Range daterange.Range `json:"-"`
	From  string          `json:"from"`
	To    string          `json:"to"`
	// Devices is sorted; empty means all devices.
	Devices []string `json:"devices"`
	Tab     Tab      `json:"tab"`
}

// Ticket identifies one fetch of a view.
type Ticket struct {
	View       string
	Generation uint64
}

type subscriber struct {
	fields Field
	fn     func(Snapshot)
}

type State struct {
	mu          sync.Mutex
	rng         daterange.Range
	devices     map[string]struct{}
	tab         Tab
	generations map[string]uint64
	subscribers []subscriber
}

func New(r daterange.Range) *State {
	return &State{
		rng:         r,
		devices:     make(map[string]struct{}),
		tab:         TabDashboard,
		generations: make(map[string]uint64),
	}
}

func (s *State) snapshotLocked() Snapshot {
	devices := make([]string, 0, len(s.devices))
	for mac := range s.devices {
		devices = append(devices, mac)
	}
	sort.Strings(devices)
	return Snapshot{
		Range:   s.rng,
		From:    s.rng.FromISO(),
		To:      s.rng.ToISO(),
		Devices: devices,
		Tab:     s.tab,
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run after any change touching fields.
// Callbacks run on the goroutine of the setter, outside the lock.
func (s *State) Subscribe(fields Field, fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, subscriber{fields: fields, fn: fn})
}

// commit releases the lock and notifies the subscribers interested in changed.
// It must be called with s.mu held.
func (s *State) commit(changed Field) {
	if changed == FieldNone {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	var notify []func(Snapshot)
	for _, sub := range s.subscribers {
		if sub.fields.Has(changed) {
			notify = append(notify, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(snap)
	}
}

func (s *State) SetRange(r daterange.Range) {
	s.mu.Lock()
	changed := FieldNone
	if !s.rng.Equal(r) {
		s.rng = r
		changed = FieldRange
	}
	s.commit(changed)
}

func (s *State) SetDevices(macs []string) {
	next := make(map[string]struct{}, len(macs))
	for _, mac := range macs {
		if mac = strings.TrimSpace(mac); mac != "" {
			next[mac] = struct{}{}
		}
	}

	s.mu.Lock()
	changed := FieldNone
	if !sameSet(s.devices, next) {
		s.devices = next
		changed = FieldDevices
	}
	s.commit(changed)
}

// ToggleDevice adds mac to the filter, or removes it if already selected.
func (s *State) ToggleDevice(mac string) {
	s.mu.Lock()
	next := make(map[string]struct{}, len(s.devices)+1)
	for m := range s.devices {
		next[m] = struct{}{}
	}
	if _, ok := next[mac]; ok {
		delete(next, mac)
	} else {
		next[mac] = struct{}{}
	}
	s.devices = next
	s.commit(FieldDevices)
}

func (s *State) ClearDevices() {
	s.SetDevices(nil)
}

func (s *State) SetTab(t Tab) {
	s.mu.Lock()
	changed := FieldNone
	if s.tab != t {
		s.tab = t
		changed = FieldTab
	}
	s.commit(changed)
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Begin issues the next generation for view. Only the most recently issued
// ticket of a view is current.
func (s *State) Begin(view string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[view]++
	return Ticket{View: view, Generation: s.generations[view]}
}

func (s *State) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[t.View] == t.Generation
}

// FilterLabel describes the device filter of snap. names maps MACs to display
// names.
func FilterLabel(snap Snapshot, names map[string]string) string {
	switch len(snap.Devices) {
	case 0:
		return "All Devices"
	case 1:
		if name := names[snap.Devices[0]]; name != "" {
			return name
		}
		return snap.Devices[0]
	default:
		return fmt.Sprintf("%d Devices", len(snap.Devices))
	}
}
