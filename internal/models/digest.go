package models

import "time"

// Capture is one scrape worth of raw analytics input.
type Capture struct {
	Text       string    `json:"text"`
	Rows       [][]any   `json:"rows,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Origins    []string  `json:"origins"`
}

// DFLStatus is persisted under the dfl_status key after every cycle.
type DFLStatus struct {
	RunID      string    `json:"runId"`
	CapturedAt time.Time `json:"capturedAt"`
	Sections   []string  `json:"sections"`
	Report     YPPReport `json:"report"`
	Strategy   Strategy  `json:"strategy"`
	Pivoted    bool      `json:"pivoted"`
	PlanItems  int       `json:"planItems"`
}

type Digest struct {
	Date     time.Time          `json:"date"`
	Status   *DFLStatus         `json:"status"`
	Markdown string             `json:"markdown"`
	Pivot    *PivotNotification `json:"pivot,omitempty"`
	Plan     *Plan              `json:"plan,omitempty"`
}
