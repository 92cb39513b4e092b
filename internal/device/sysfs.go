package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsBattery reads battery state from the Linux power-supply class.
type SysfsBattery struct {
	dir string
}

// DetectSysfsBattery looks for a battery under /sys/class/power_supply.
// Returns false on hosts without one (desktops, containers).
func DetectSysfsBattery() (*SysfsBattery, bool) {
	matches, err := filepath.Glob("/sys/class/power_supply/BAT*/capacity")
	if err != nil || len(matches) == 0 {
		return nil, false
	}
	return &SysfsBattery{dir: filepath.Dir(matches[0])}, true
}

func (b *SysfsBattery) Battery(_ context.Context) (BatteryReading, error) {
	capRaw, err := os.ReadFile(filepath.Join(b.dir, "capacity"))
	if err != nil {
		return BatteryReading{}, fmt.Errorf("read battery capacity: %w", err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(capRaw)))
	if err != nil {
		return BatteryReading{}, fmt.Errorf("parse battery capacity: %w", err)
	}

	statusRaw, err := os.ReadFile(filepath.Join(b.dir, "status"))
	if err != nil {
		return BatteryReading{}, fmt.Errorf("read battery status: %w", err)
	}

	return BatteryReading{
		Level:    level,
		Charging: strings.TrimSpace(string(statusRaw)) == "Charging",
	}, nil
}
