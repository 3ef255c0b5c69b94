// Package aggregator reduces per-day API records into per-device and
// per-protocol totals over a date range.
package aggregator

import (
	"sort"
	"strings"

	"nlbwdash/internal/models"
)

// NamePolicy decides which day's friendly_name and ip label a device.
type NamePolicy int

const (
	// FirstSeen keeps the values from the first day a device appears.
	FirstSeen NamePolicy = iota
	// Latest lets every later non-empty value overwrite the earlier one.
	Latest
)

// ParseNamePolicy maps the devices.namePolicy config value.
func ParseNamePolicy(s string) NamePolicy {
	if strings.EqualFold(s, "latest") {
		return Latest
	}
	return FirstSeen
}

type Options struct {
	Policy NamePolicy
	// Overrides maps lower-case MAC addresses to friendly names that replace
	// whatever the API reported.
	Overrides map[string]string
}

// Override returns the configured friendly name of mac, or "".
func (o Options) Override(mac string) string {
	return o.Overrides[strings.ToLower(mac)]
}

// DeviceTotal holds one device's counters summed across a range.
type DeviceTotal struct {
	MAC          string `json:"mac"`
	FriendlyName string `json:"friendly_name"`
	IP           string `json:"ip"`
	Downloaded   uint64 `json:"downloaded"`
	Uploaded     uint64 `json:"uploaded"`
	RxPackets    uint64 `json:"rx_packets"`
	TxPackets    uint64 `json:"tx_packets"`
	Connections  uint64 `json:"connections"`
}

// Total is downloaded plus uploaded.
func (d DeviceTotal) Total() uint64 {
	return d.Downloaded + d.Uploaded
}

// Name returns the friendly name, or the MAC when there is none.
func (d DeviceTotal) Name() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	return d.MAC
}

func (d *DeviceTotal) add(s models.DeviceDayStat) {
	d.Downloaded += s.Downloaded
	d.Uploaded += s.Uploaded
	d.RxPackets += s.RxPackets
	d.TxPackets += s.TxPackets
	d.Connections += s.Connections
}

type DeviceTotals struct {
	ByMAC map[string]*DeviceTotal
	// Ranked is ordered by downloaded, descending. Ties keep encounter order.
	Ranked []DeviceTotal
}

// Devices accumulates the device entries of days. Days are visited in the
// given order and the devices of one day in ascending key order, which fixes
// the encounter order used for tie-breaking.
func Devices(days []models.DailyRecord, opts Options) *DeviceTotals {
	byMAC := make(map[string]*DeviceTotal)
	var order []string

	for _, day := range days {
		if len(day.Devices) == 0 {
			continue
		}

		keys := make([]string, 0, len(day.Devices))
		for k := range day.Devices {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			stat := day.Devices[k]
			mac := stat.MAC
			if mac == "" {
				mac = k
			}

			total, ok := byMAC[mac]
			if !ok {
				total = &DeviceTotal{
					MAC:          mac,
					FriendlyName: stat.FriendlyName,
					IP:           stat.IP,
				}
				byMAC[mac] = total
				order = append(order, mac)
			} else if opts.Policy == Latest {
				if stat.FriendlyName != "" {
					total.FriendlyName = stat.FriendlyName
				}
				if stat.IP != "" {
					total.IP = stat.IP
				}
			}
			total.add(stat)
		}
	}

	if len(opts.Overrides) > 0 {
		for mac, total := range byMAC {
			if name := opts.Override(mac); name != "" {
				total.FriendlyName = name
			}
		}
	}

	ranked := make([]DeviceTotal, 0, len(order))
	for _, mac := range order {
		ranked = append(ranked, *byMAC[mac])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Downloaded > ranked[j].Downloaded
	})

	return &DeviceTotals{ByMAC: byMAC, Ranked: ranked}
}

// Top returns at most n entries of the ranking.
func (t *DeviceTotals) Top(n int) []DeviceTotal {
	if n < 0 || n >= len(t.Ranked) {
		return t.Ranked
	}
	return t.Ranked[:n]
}

// ByTotal ranks devices by downloaded+uploaded, keeping the download ranking
// order on ties.
func (t *DeviceTotals) ByTotal() []DeviceTotal {
	out := make([]DeviceTotal, len(t.Ranked))
	copy(out, t.Ranked)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total() > out[j].Total()
	})
	return out
}

// Sum adds up downloaded and uploaded over all devices.
func (t *DeviceTotals) Sum() (downloaded, uploaded uint64) {
	for _, d := range t.Ranked {
		downloaded += d.Downloaded
		uploaded += d.Uploaded
	}
	return downloaded, uploaded
}

// Values flattens ByMAC into a value map, suitable for Merge.
func (t *DeviceTotals) Values() map[string]DeviceTotal {
	out := make(map[string]DeviceTotal, len(t.ByMAC))
	for mac, d := range t.ByMAC {
		out[mac] = *d
	}
	return out
}

// Merge sums two device mappings key by key. Labels come from a when the
// device is present in both.
func Merge(a, b map[string]DeviceTotal) map[string]DeviceTotal {
	out := make(map[string]DeviceTotal, len(a)+len(b))
	for mac, d := range a {
		out[mac] = d
	}
	for mac, d := range b {
		cur, ok := out[mac]
		if !ok {
			out[mac] = d
			continue
		}
		cur.Downloaded += d.Downloaded
		cur.Uploaded += d.Uploaded
		cur.RxPackets += d.RxPackets
		cur.TxPackets += d.TxPackets
		cur.Connections += d.Connections
		out[mac] = cur
	}
	return out
}
