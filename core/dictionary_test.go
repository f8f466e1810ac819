package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

type dictJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func newTestDictionary() *Dictionary {
	reg := NewCommandRegistry()
	reg.Register("identify_response", "offset=%u data=%*s", nil)
	reg.Register("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })
	reg.Register("commutation_start", "", func(data *[]byte) error { return nil })

	dict := NewDictionary(reg)
	dict.AddConstant("PWM_MAX_DUTY", uint32(8499))
	dict.AddConstant("COMMUTATION_PATTERN", "two_phase_high_low")
	dict.AddEnumeration("pattern", []string{"two_phase_high_low", "three_level_trapezoidal"})
	return dict
}

func TestDictionaryJSON(t *testing.T) {
	dict := newTestDictionary()

	var parsed dictJSON
	if err := json.Unmarshal(dict.Generate(), &parsed); err != nil {
		t.Fatalf("dictionary is not valid JSON: %v\n%s", err, dict.Generate())
	}

	if parsed.Version != "sixstep-0.1.0" {
		t.Errorf("version = %q", parsed.Version)
	}
	if parsed.Config["PWM_MAX_DUTY"] != "8499" {
		t.Errorf("PWM_MAX_DUTY = %q", parsed.Config["PWM_MAX_DUTY"])
	}
	if parsed.Config["COMMUTATION_PATTERN"] != "two_phase_high_low" {
		t.Errorf("COMMUTATION_PATTERN = %q", parsed.Config["COMMUTATION_PATTERN"])
	}
	if parsed.Commands["identify offset=%u count=%c"] != 1 {
		t.Errorf("commands = %v", parsed.Commands)
	}
	if parsed.Commands["commutation_start"] != 2 {
		t.Errorf("commands = %v", parsed.Commands)
	}
	if id, ok := parsed.Responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("responses = %v", parsed.Responses)
	}
	if parsed.Enumerations["pattern"]["three_level_trapezoidal"] != 1 {
		t.Errorf("enumerations = %v", parsed.Enumerations)
	}
}

func TestDictionaryCompressed(t *testing.T) {
	dict := newTestDictionary()
	plain := append([]byte(nil), dict.Generate()...)

	dict.BuildDictionary()
	compressed := dict.Generate()

	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zlib header: %v", err)
	}
	inflated, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if !bytes.Equal(inflated, plain) {
		t.Errorf("inflated dictionary differs from the JSON")
	}

	// A new constant drops the cache
	dict.AddConstant("TICK_HZ", uint32(150))
	if bytes.Equal(dict.Generate(), compressed) {
		t.Errorf("cache not invalidated by AddConstant")
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := newTestDictionary()
	dict.BuildDictionary()
	full := dict.Generate()

	var rebuilt []byte
	for offset := uint32(0); ; {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 40 {
			t.Fatalf("chunk of %d bytes", len(chunk))
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}
	if !bytes.Equal(rebuilt, full) {
		t.Errorf("chunks do not reassemble the dictionary")
	}

	if len(dict.GetChunk(uint32(len(full)+100), 10)) != 0 {
		t.Error("Chunk beyond end should be empty")
	}
}
