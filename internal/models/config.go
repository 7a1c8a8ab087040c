package models

// PointConfig describes one configured point in the point table.
type PointConfig struct {
	Index       uint16   `json:"index"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
}

// DeviceConfiguration is the JSON point-table document. Each group is
// ordered by index; a missing group means no points of that type.
type DeviceConfiguration struct {
	Name          *string       `json:"name,omitempty"`
	BinaryInputs  []PointConfig `json:"binary_inputs,omitempty"`
	BinaryOutputs []PointConfig `json:"binary_outputs,omitempty"`
	AnalogInputs  []PointConfig `json:"analog_inputs,omitempty"`
	AnalogOutputs []PointConfig `json:"analog_outputs,omitempty"`
	Counters      []PointConfig `json:"counters,omitempty"`
}

// Empty reports whether no points are configured.
func (c *DeviceConfiguration) Empty() bool {
	return len(c.BinaryInputs) == 0 && len(c.BinaryOutputs) == 0 &&
		len(c.AnalogInputs) == 0 && len(c.AnalogOutputs) == 0 && len(c.Counters) == 0
}

// Points flattens the configuration into data points, grouped by type in
// declaration order.
func (c *DeviceConfiguration) Points() []DataPoint {
	var points []DataPoint
	add := func(t PointType, group []PointConfig) {
		for _, pc := range group {
			points = append(points, NewDataPoint(t, pc.Index, pc.Name))
		}
	}
	add(PointBinaryInput, c.BinaryInputs)
	add(PointBinaryOutput, c.BinaryOutputs)
	add(PointAnalogInput, c.AnalogInputs)
	add(PointAnalogOutput, c.AnalogOutputs)
	add(PointCounter, c.Counters)
	return points
}

// Group returns the group slice for a point type.
func (c *DeviceConfiguration) Group(t PointType) *[]PointConfig {
	switch t {
	case PointBinaryInput:
		return &c.BinaryInputs
	case PointBinaryOutput:
		return &c.BinaryOutputs
	case PointAnalogInput:
		return &c.AnalogInputs
	case PointAnalogOutput:
		return &c.AnalogOutputs
	case PointCounter:
		return &c.Counters
	}
	return nil
}
