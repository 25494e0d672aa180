package settings

import (
	"encoding/json"
	"time"
)

// HumanReadableDuration is a time.Duration stored in JSON as "45s" or "1m30s".
type HumanReadableDuration time.Duration

func (d HumanReadableDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *HumanReadableDuration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = HumanReadableDuration(duration)
	return nil
}

func (d HumanReadableDuration) Duration() time.Duration {
	return time.Duration(d)
}
