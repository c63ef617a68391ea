package patient

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DecodeRoster reads a JSON array of patient records.
func DecodeRoster(r io.Reader) ([]*Patient, error) {
	var roster []*Patient
	if err := json.NewDecoder(r).Decode(&roster); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	out := roster[:0]
	for _, p := range roster {
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func LoadRosterFile(path string) ([]*Patient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer f.Close()
	return DecodeRoster(f)
}
