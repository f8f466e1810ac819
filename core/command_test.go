package core

import (
	"testing"

	"sixstep/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	id := registry.Register("test_command", "arg=%u", func(data *[]byte) error {
		called = true
		return nil
	})
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok || cmd.Name != "test_command" {
		t.Fatalf("GetCommand(%d) = %+v, %v", id, cmd, ok)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestCommandRegistryIDs(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "", func(data *[]byte) error { return nil })
	id2 := registry.Register("response1", "value=%u", nil)
	id3 := registry.Register("command2", "", func(data *[]byte) error { return nil })
	again := registry.Register("command1", "", nil)

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("IDs not sequential: %d, %d, %d", id1, id2, id3)
	}
	if again != id1 {
		t.Errorf("re-registering returned %d, expected %d", again, id1)
	}
	if registry.Count() != 3 {
		t.Errorf("Count = %d, expected 3", registry.Count())
	}

	var data []byte
	if err := registry.Dispatch(id2, &data); err == nil {
		t.Error("dispatching a response should fail")
	}
}

func TestCommandsAndResponses(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("get_clock", "", func(data *[]byte) error { return nil })
	registry.Register("clock", "clock=%u", nil)

	commands, responses := registry.GetCommandsAndResponses()
	if id, ok := commands["get_clock"]; !ok || id != 0 {
		t.Errorf("commands = %v", commands)
	}
	if id, ok := responses["clock clock=%u"]; !ok || id != 1 {
		t.Errorf("responses = %v", responses)
	}
}

func TestCommandWithArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var receivedValue uint32
	id := registry.Register("test_args", "value=%u", func(data *[]byte) error {
		val, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		receivedValue = val
		return nil
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 12345)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if receivedValue != 12345 {
		t.Errorf("Expected value 12345, got %d", receivedValue)
	}
}
