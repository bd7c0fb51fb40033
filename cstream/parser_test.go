package cstream

import (
	"errors"
	"strings"
	"testing"

	"github.com/quasilyte/chipseq"
)

func validStream(t *testing.T) []byte {
	t.Helper()
	prog := &Program{}
	prog.Command(cmd(chipseq.CmdNoteOn, 0))
	data, err := (&Builder{Programs: []*Program{prog}}).Build()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(data []byte) []byte
		want   string
	}{
		{
			name:   "truncated",
			mutate: func(data []byte) []byte { return data[:10] },
			want:   "header: unexpected EOF while reading header",
		},
		{
			name: "magic",
			mutate: func(data []byte) []byte {
				data[0] = 'X'
				return data
			},
			want: "invalid magic",
		},
		{
			name: "no channels",
			mutate: func(data []byte) []byte {
				data[offsetNumChannels] = 0
				data[offsetNumChannels+1] = 0
				return data
			},
			want: "stream has no channels",
		},
		{
			name: "flags",
			mutate: func(data []byte) []byte {
				data[offsetFlags] = 0x80
				return data
			},
			want: "unknown flags",
		},
		{
			name: "command kind",
			mutate: func(data []byte) []byte {
				data[offsetFastCmds+2] = 200
				return data
			},
			want: "fast commands[2]: unknown command kind 200",
		},
		{
			name: "start address",
			mutate: func(data []byte) []byte {
				data[offsetStarts] = 0xf0
				data[offsetStarts+1] = 0xff
				return data
			},
			want: "start addresses[0]: start address 0xfff0 is outside of the program",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := test.mutate(validStream(t))
			_, err := Parse(data)
			if err == nil {
				t.Fatal("expected an error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("unexpected error type %T", err)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Fatalf("error %q does not mention %q", err, test.want)
			}
		})
	}
}

func TestParseErrorFormat(t *testing.T) {
	err := &ParseError{Message: "header: bad magic", Offset: 4}
	if have, want := err.Error(), "parse stream at 0x4: header: bad magic"; have != want {
		t.Fatalf("error text:\nhave: %s\nwant: %s", have, want)
	}
}

func TestParseStackDepthClamp(t *testing.T) {
	data := validStream(t)
	data[headerSize(1, 2)-1] = 40
	s, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if s.StackDepths[0] != MaxStackDepth {
		t.Fatalf("stack depth: have %d, want %d", s.StackDepths[0], MaxStackDepth)
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	data := validStream(t)
	s, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	// A pitch instruction without its operand.
	s.Data = append(s.Data, opPitch, 0x01)
	_, err = Decode(s, len(s.Data)-2)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("truncated operand: have %v, want %v", err, ErrOutOfBounds)
	}
	_, err = Decode(s, 3)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("header address: have %v, want %v", err, ErrOutOfBounds)
	}
}
