package image

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/clasp/vm"
)

func sampleProgram() *vm.Program {
	return &vm.Program{
		Name:  "adder",
		Entry: 0,
		Code: []vm.Instruction{
			vm.LiteralInt(1),
			vm.LiteralInt(-2),
			vm.MakeClosure(7, 1, 0),
			vm.Call(1),
			vm.Call(1),
			vm.Return(),
			vm.Load(0),
			vm.Load(0),
			vm.MakeClosure(10, 1, 1),
			vm.Return(),
			vm.Load(2),
			vm.Load(0),
			vm.Add(),
			vm.Return(),
		},
		Labels: map[vm.Address]string{7: "adder"},
	}
}

func TestImageRoundTrip(t *testing.T) {
	p := sampleProgram()
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("CLSP")) || data[4] != Version {
		t.Fatalf("header = %q", data[:5])
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Name != p.Name || got.Entry != p.Entry {
		t.Errorf("header fields: got %q/%d", got.Name, got.Entry)
	}
	if len(got.Code) != len(p.Code) {
		t.Fatalf("Code len = %d, want %d", len(got.Code), len(p.Code))
	}
	for i := range p.Code {
		if got.Code[i] != p.Code[i] {
			t.Errorf("Code[%d] = %s, want %s", i, got.Code[i], p.Code[i])
		}
	}
	if got.Labels[7] != "adder" {
		t.Errorf("Labels = %v", got.Labels)
	}
}

func TestImageDeterministic(t *testing.T) {
	a, err := Marshal(sampleProgram())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(sampleProgram())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestImageRuns(t *testing.T) {
	data, err := Marshal(sampleProgram())
	if err != nil {
		t.Fatal(err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	v, _, err := vm.Exec(p.Code, p.Entry)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsInt(); n != -1 {
		t.Errorf("result = %v, want -1", v)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	good, err := Marshal(sampleProgram())
	if err != nil {
		t.Fatal(err)
	}
	badVersion := append([]byte(nil), good...)
	badVersion[4] = 99

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotImage},
		{"source text", []byte("x = 1\nx"), ErrNotImage},
		{"version", badVersion, ErrVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Unmarshal(good[:len(good)-3]); err == nil {
		t.Error("truncated image accepted")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog"+Extension)
	if err := WriteFile(path, sampleProgram()); err != nil {
		t.Fatal(err)
	}
	p, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Code) != 14 {
		t.Errorf("Code len = %d", len(p.Code))
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadFile of a missing file succeeded")
	}
}

func TestHash(t *testing.T) {
	a := Hash([]byte("1 + 2"))
	if len(a) != 64 {
		t.Fatalf("Hash length = %d", len(a))
	}
	if a != Hash([]byte("1 + 2")) {
		t.Error("Hash not stable")
	}
	if a == Hash([]byte("1 + 3")) {
		t.Error("different sources share a hash")
	}
}
