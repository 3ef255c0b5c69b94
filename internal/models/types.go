package models

import "time"

// CalendarEntry is one day of the /api/calendar response.
type CalendarEntry struct {
	Date       string `json:"date"`
	Value      uint64 `json:"value"` // downloaded + uploaded
	Downloaded uint64 `json:"downloaded"`
	Uploaded   uint64 `json:"uploaded"`
}

type DeviceDayStat struct {
	MAC          string `json:"mac"`
	FriendlyName string `json:"friendly_name"`
	IP           string `json:"ip"`
	Downloaded   uint64 `json:"downloaded"`
	Uploaded     uint64 `json:"uploaded"`
	RxPackets    uint64 `json:"rx_packets"`
	TxPackets    uint64 `json:"tx_packets"`
	Connections  uint64 `json:"connections"`
}

// DailyRecord is one entry of Summary.Days. Devices is keyed by MAC and may be absent.
type DailyRecord struct {
	Date       string                   `json:"date"`
	Downloaded uint64                   `json:"downloaded"`
	Uploaded   uint64                   `json:"uploaded"`
	Devices    map[string]DeviceDayStat `json:"devices,omitempty"`
}

type Summary struct {
	From            string        `json:"from"`
	To              string        `json:"to"`
	TotalDownloaded uint64        `json:"total_downloaded"`
	TotalUploaded   uint64        `json:"total_uploaded"`
	Days            []DailyRecord `json:"days"`
}

type TimeseriesPoint struct {
	Date       string `json:"date"`
	Downloaded uint64 `json:"downloaded"`
	Uploaded   uint64 `json:"uploaded"`
}

type ProtocolStat struct {
	Protocol    string `json:"protocol"`
	Port        uint16 `json:"port"`
	Downloaded  uint64 `json:"downloaded"`
	Uploaded    uint64 `json:"uploaded"`
	RxPackets   uint64 `json:"rx_packets"`
	TxPackets   uint64 `json:"tx_packets"`
	Connections uint64 `json:"connections"`
}

type Achievement struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Threshold   float64 `json:"threshold"`
}

type AchievementStatus struct {
	Achievement  Achievement `json:"achievement"`
	Unlocked     bool        `json:"unlocked"`
	UnlockedAt   *time.Time  `json:"unlocked_at,omitempty"`
	Progress     float64     `json:"progress"` // 0.0-1.0
	CurrentValue float64     `json:"current_value"`
	TargetValue  float64     `json:"target_value"`
}

type Achievements struct {
	Achievements  []AchievementStatus `json:"achievements"`
	TotalUnlocked int                 `json:"total_unlocked"`
	TotalProgress float64             `json:"total_progress"`
}
