package core

import (
	"bytes"
	"sync"

	"sixstep/tinycompress"
)

// Constant is a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps value names to their indexes (e.g., pattern names)
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the data dictionary the host retrieves with identify
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte // compressed dictionary, set by BuildDictionary
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary describing the commands in cmdReg
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "sixstep-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the global dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// AddConstant adds or replaces a constant
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cachedDict = nil
}

// AddEnumeration adds or replaces an enumeration
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep our own copy; callers may reuse their slice
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)

	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// BuildDictionary compresses and caches the dictionary. Call it once all
// commands and constants are registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch from the registry before taking our own lock
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands, responses)

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(jsonData); err != nil {
		DebugPrintln("[dict] compression failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}
	if err := w.Close(); err != nil {
		DebugPrintln("[dict] compression failed: " + err.Error())
		d.cachedDict = jsonData
		return
	}

	d.cachedDict = buf.Bytes()
	DebugPrintln("[dict] " + itoa(len(jsonData)) + " bytes -> " + itoa(len(d.cachedDict)))
}

// Generate returns the cached dictionary, or uncompressed JSON if
// BuildDictionary has not run since the last change
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands, responses)
}

// buildJSONLocked renders the Klipper-style JSON dictionary (caller holds lock)
func (d *Dictionary) buildJSONLocked(commands map[string]int, responses map[string]int) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","build_versions":"`...)
	result = append(result, d.buildVersions...)
	result = append(result, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sortStrings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, valueToString(d.constants[name].Value)...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)

		names = names[:0]
		for name := range d.enumerations {
			names = append(names, name)
		}
		sortStrings(names)

		for i, name := range names {
			if i > 0 {
				result = append(result, ',')
			}
			result = append(result, '"')
			result = append(result, name...)
			result = append(result, `":{`...)

			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = append(result, '"')
				result = append(result, value...)
				result = append(result, `":`...)
				result = append(result, itoa(idx)...)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	return append(result, '}')
}

// appendIDMap renders a "format": id object ordered by id
func appendIDMap(result []byte, m map[string]int) []byte {
	byID := make(map[int]string, len(m))
	ids := make([]int, 0, len(m))
	for format, id := range m {
		byID[id] = format
		ids = append(ids, id)
	}
	sortInts(ids)

	result = append(result, '{')
	for i, id := range ids {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, byID[id]...)
		result = append(result, `":`...)
		result = append(result, itoa(id)...)
	}
	return append(result, '}')
}

// GetChunk returns up to count bytes of the dictionary starting at offset.
// Past the end it returns an empty chunk, which ends the host's download.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	// Copy: the chunk outlives this call while it sits in the USB buffer
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
