package exposure

import (
	"fmt"
	"strings"
)

// Sensor describes the physical sensor: height and circle of confusion, both in mm.
type Sensor struct {
	Height float32
	CoC    float32
}

// SensorPreset is one of the standard sensor formats.
type SensorPreset int

const (
	FourThirds SensorPreset = iota
	APSC
	FullFrame
	MediumFormat
	LargeFormat
)

var sensorTable = [...]struct {
	name   string
	sensor Sensor
}{
	FourThirds:   {"4/3", Sensor{Height: 17.3, CoC: 0.015}},
	APSC:         {"aps-c", Sensor{Height: 22.5, CoC: 0.015}},
	FullFrame:    {"35mm", Sensor{Height: 24, CoC: 0.03}},
	MediumFormat: {"medium", Sensor{Height: 36, CoC: 0.05}},
	LargeFormat:  {"large", Sensor{Height: 90, CoC: 0.10}},
}

// Sensor returns the dimensions of the preset. Unknown presets fall back to 35mm.
func (p SensorPreset) Sensor() Sensor {
	if p < 0 || int(p) >= len(sensorTable) {
		return sensorTable[FullFrame].sensor
	}
	return sensorTable[p].sensor
}

func (p SensorPreset) String() string {
	if p < 0 || int(p) >= len(sensorTable) {
		return fmt.Sprintf("SensorPreset(%d)", int(p))
	}
	return sensorTable[p].name
}

// ParseSensorPreset accepts the names produced by String, case-insensitively.
func ParseSensorPreset(s string) (SensorPreset, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "fullframe", "full-frame", "35":
		return FullFrame, nil
	case "apsc":
		return APSC, nil
	case "four-thirds", "mft":
		return FourThirds, nil
	}
	for i, e := range sensorTable {
		if e.name == name {
			return SensorPreset(i), nil
		}
	}
	return FullFrame, fmt.Errorf("unknown sensor preset %q", s)
}

// SensorPresets lists all presets in order.
func SensorPresets() []SensorPreset {
	return []SensorPreset{FourThirds, APSC, FullFrame, MediumFormat, LargeFormat}
}
