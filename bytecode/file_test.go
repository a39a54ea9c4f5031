package bytecode

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/pushkin/vm"
)

func demoProgram() vm.Program {
	return vm.Program{
		vm.Inst(vm.OpPush, 5),
		vm.Inst(vm.OpPush, 10),
		vm.Inst(vm.OpAdd),
		vm.Inst(vm.OpStore, 100),
		vm.Inst(vm.OpLoad, 100),
		vm.Inst(vm.OpPrint),
		vm.Inst(vm.OpHalt),
	}
}

func TestRoundTrip(t *testing.T) {
	want := demoProgram()

	data, err := Marshal(FromProgram("demo", want))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	f, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if f.Name != "demo" {
		t.Errorf("name = %q, want %q", f.Name, "demo")
	}

	got, err := f.Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\ngot:  %v\nwant: %v", got, want)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	f := FromProgram("demo", demoProgram())

	a, err := Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding produced different bytes for the same file")
	}
}

func TestHeader(t *testing.T) {
	data, err := Marshal(FromProgram("", vm.Program{vm.Inst(vm.OpHalt)}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(data[:4], []byte("PKBC")) {
		t.Errorf("magic = %q, want %q", data[:4], "PKBC")
	}
	if data[4] != 0 || data[5] != 1 {
		t.Errorf("version bytes = %v, want [0 1]", data[4:6])
	}
	if !IsBytecode(data) {
		t.Error("IsBytecode = false for marshaled file")
	}
	if IsBytecode([]byte("PUSH 5\nHALT\n")) {
		t.Error("IsBytecode = true for assembly text")
	}
}

func TestUnmarshalErrors(t *testing.T) {
	valid, err := Marshal(FromProgram("demo", demoProgram()))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	badVersion := append([]byte(nil), valid...)
	badVersion[5] = 9

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "unexpected end"},
		{"short", []byte("PKB"), "unexpected end"},
		{"bad magic", []byte("NOPE\x00\x01"), "bad magic"},
		{"bad version", badVersion, "unsupported version 9"},
		{"garbage payload", append([]byte("PKBC\x00\x01"), 0xFF, 0xFF, 0xFF), "unmarshal payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal(tc.data)
			if err == nil {
				t.Fatal("Unmarshal succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}

func TestProgramValidation(t *testing.T) {
	cases := []struct {
		name string
		file File
		want string
	}{
		{
			"unknown opcode",
			File{Code: []Instruction{{Op: 0xEE}}},
			"unknown opcode 0xEE",
		},
		{
			"reserved opcode survives",
			File{Code: []Instruction{{Op: byte(vm.OpJmp), Operands: []int64{3}}}},
			"",
		},
		{
			"missing operand",
			File{Code: []Instruction{{Op: byte(vm.OpPush)}}},
			"PUSH takes 1 operand(s), got 0",
		},
		{
			"extra operand",
			File{Code: []Instruction{{Op: byte(vm.OpAdd), Operands: []int64{1}}}},
			"ADD takes 0 operand(s), got 1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.file.Program()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Program: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Program succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}
