package access

import (
	"github.com/regline-protocol/regline-go/pkg/protocol"
)

// simple issues a single-command operation under the standard retry
// wrapper.
func (e *Engine) simple(op string, cmd protocol.Command, opts []Option) (*opState, *protocol.Exchange, error) {
	st := e.newOp(opts)
	ex, err := e.exchange(st, cmd)
	e.logOp(st, op, "", 0, 0)
	return st, ex, err
}

// Commit applies the device's pending configuration ("ex").
func (e *Engine) Commit(opts ...Option) (*Result, error) {
	st, _, err := e.simple("commit", protocol.Command{Op: protocol.OpCommit}, opts)
	return st.res, err
}

// SoftReset asks the device to reset itself ("mcu_rst").
func (e *Engine) SoftReset(opts ...Option) (*Result, error) {
	st, _, err := e.simple("soft_reset", protocol.Command{Op: protocol.OpSoftReset}, opts)
	return st.res, err
}

// Version queries the device interface version. On success the result
// value is the version string.
func (e *Engine) Version(opts ...Option) (*Result, error) {
	st, ex, err := e.simple("version", protocol.Command{Op: protocol.OpVersion}, opts)
	if err != nil {
		return st.res, err
	}
	st.res.Value = ex.Version
	return st.res, nil
}

// Special issues a device-defined extension command as an opaque
// pass-through. An empty raw sends the bare "special_cmd" opcode. Any
// payload the device returns surfaces as the result value.
func (e *Engine) Special(raw string, opts ...Option) (*Result, error) {
	st, ex, err := e.simple("special", protocol.Command{Op: protocol.OpSpecial, Raw: raw}, opts)
	if err != nil {
		return st.res, err
	}
	switch {
	case ex.Literal != nil:
		st.res.Value = ex.Literal
	case ex.Data != nil:
		st.res.Value = ex.Data
	}
	return st.res, nil
}

// CommitWrite writes a register and commits in one step. The commit's
// command trace and retries are folded into the write's result.
func (e *Engine) CommitWrite(name string, value int64, opts ...Option) (*Result, error) {
	res, err := e.WriteRegister(name, value, opts...)
	if err != nil {
		return res, err
	}
	cres, err := e.Commit(opts...)
	res.Commands = append(res.Commands, cres.Commands...)
	res.Retries += cres.Retries
	res.Outcome = cres.Outcome
	return res, err
}
