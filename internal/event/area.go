package event

import "encoding/json"

// AreaGenerated is the structured payload of a generatedArea event,
// parsed from the "Generating level N area ..." debug line. It is
// persisted as JSON in the event text column.
type AreaGenerated struct {
	Level int    `json:"level"`
	Area  string `json:"area"`
	Seed  int64  `json:"seed"`
}

func (a AreaGenerated) Encode() string {
	b, _ := json.Marshal(a)
	return string(b)
}

func DecodeAreaGenerated(text string) (AreaGenerated, error) {
	var a AreaGenerated
	err := json.Unmarshal([]byte(text), &a)
	return a, err
}
