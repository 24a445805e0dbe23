package jvm

import (
	"encoding/json"
)

// StateSnapshot is a JSON view of a Context between or after runs.
type StateSnapshot struct {
	IP        int               `json:"ip"`
	SP        int               `json:"sp"`
	FP        int               `json:"fp"`
	Registers map[string]uint64 `json:"registers"`
	Flags     uint64            `json:"flags"`
	Steps     uint64            `json:"steps"`
	Depth     int               `json:"depth"`
	MaxDepth  int               `json:"max_depth"`
	Direction string            `json:"direction"`
	Inline    bool              `json:"inline"`
	Result    ReturnValue       `json:"result"`
}

func (ctx *Context) State() StateSnapshot {
	regs := make(map[string]uint64, numRegisters)
	for r, v := range ctx.regs.Snapshot() {
		regs[Register(r).String()] = v
	}
	return StateSnapshot{
		IP:        ctx.ip,
		SP:        ctx.stack.Pos(),
		FP:        ctx.fp,
		Registers: regs,
		Flags:     uint64(ctx.regs.Flags),
		Steps:     ctx.steps,
		Depth:     ctx.depth,
		MaxDepth:  ctx.maxDepth,
		Direction: ctx.cfg.Direction.String(),
		Inline:    ctx.inline,
		Result:    ctx.result,
	}
}

func (s StateSnapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
