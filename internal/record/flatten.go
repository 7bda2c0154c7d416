package record

import "time"

// ValidateAndFlatten validates item and converts it into the flat storage
// shape. Every failing field is reported, not only the first one; the
// returned error is then a ValidationErrors.
func ValidateAndFlatten(item IncomingBatchItem) (StoredRecordInput, error) {
	var (
		out  StoredRecordInput
		errs ValidationErrors
	)

	fail := func(field string, err error) {
		errs = append(errs, &ValidationError{Field: field, Reason: err.Error()})
	}

	roadState, err := item.RoadState.String()
	if err != nil {
		fail("road_state", err)
	}
	out.RoadState = roadState

	if item.AgentData == nil {
		fail("agent_data", errMissing)
		return StoredRecordInput{}, errs
	}
	reading := item.AgentData

	if reading.Accelerometer == nil {
		fail("agent_data.accelerometer", errMissing)
	} else {
		axes := []struct {
			name string
			num  Number
			dst  *float64
		}{
			{"agent_data.accelerometer.x", reading.Accelerometer.X, &out.X},
			{"agent_data.accelerometer.y", reading.Accelerometer.Y, &out.Y},
			{"agent_data.accelerometer.z", reading.Accelerometer.Z, &out.Z},
		}
		for _, a := range axes {
			v, err := a.num.Float64()
			if err != nil {
				fail(a.name, err)
				continue
			}
			*a.dst = v
		}
	}

	if reading.GPS == nil {
		fail("agent_data.gps", errMissing)
	} else {
		if v, err := reading.GPS.Latitude.Float64(); err != nil {
			fail("agent_data.gps.latitude", err)
		} else {
			out.Latitude = v
		}
		if v, err := reading.GPS.Longitude.Float64(); err != nil {
			fail("agent_data.gps.longitude", err)
		} else {
			out.Longitude = v
		}
	}

	ts, err := reading.Timestamp.Time()
	if err != nil {
		fail("agent_data.timestamp", errNotISO8601)
	}
	out.Timestamp = ts.UTC()

	if len(errs) > 0 {
		return StoredRecordInput{}, errs
	}
	return out, nil
}

// NewItem builds a batch item from typed values.
func NewItem(roadState string, x, y, z, latitude, longitude float64, ts time.Time) IncomingBatchItem {
	return IncomingBatchItem{
		RoadState: Text(roadState),
		AgentData: &AgentReading{
			Accelerometer: &AccelerometerReading{X: Float(x), Y: Float(y), Z: Float(z)},
			GPS:           &GpsReading{Latitude: Float(latitude), Longitude: Float(longitude)},
			Timestamp:     At(ts),
		},
	}
}
