package protocol

import "testing"

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "read",
			cmd:  ReadCommand(16, 4),
			want: "rr 16 4",
		},
		{
			name: "write single byte",
			cmd:  WriteCommand(0, []byte{255}),
			want: "wr 0 255",
		},
		{
			name: "write multiple bytes",
			cmd:  WriteCommand(32, []byte{1, 0, 255, 128}),
			want: "wr 32 1 0 255 128",
		},
		{
			name: "commit",
			cmd:  Command{Op: OpCommit},
			want: "ex",
		},
		{
			name: "soft reset",
			cmd:  Command{Op: OpSoftReset},
			want: "mcu_rst",
		},
		{
			name: "version",
			cmd:  Command{Op: OpVersion},
			want: "version",
		},
		{
			name: "special default",
			cmd:  Command{Op: OpSpecial},
			want: "special_cmd",
		},
		{
			name: "special raw pass-through",
			cmd:  Command{Op: OpSpecial, Raw: "special_cmd do_thing 7"},
			want: "special_cmd do_thing 7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Line(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrnoMessage(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{22, "EINVAL-Invalid argument [22]"},
		{75, "EOVERFLOW-Value too large for defined data type [75]"},
		{93, "EPROTONOSUPPORT-Protocol not supported [93]"},
		{-999, "Unknown Error[-999]"},
		{12345, "Unknown Error[12345]"},
	}

	for _, tt := range tests {
		if got := ErrnoMessage(tt.code); got != tt.want {
			t.Errorf("ErrnoMessage(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestDeviceError(t *testing.T) {
	err := &DeviceError{Code: 22}
	if err.Error() != "EINVAL-Invalid argument [22]" {
		t.Errorf("Error() = %q", err.Error())
	}
}
