package ui

import "github.com/zolt-run/zolt/tools"

// TerminalObserver renders one turn's events to a Terminal as they happen.
// It structurally satisfies agent.Observer without ui importing agent —
// agent already depends on tools, so an agent->ui dependency for rendering
// would need ui to stay import-free of agent to avoid a cycle.
type TerminalObserver struct {
	Term      *Terminal
	streaming bool
}

func (o *TerminalObserver) OnToken(text string) {
	if !o.streaming {
		o.streaming = true
	}
	o.Term.PrintAssistant(text)
}

func (o *TerminalObserver) OnToolCall(name tools.Name, payload string) {
	if o.streaming {
		o.Term.PrintAssistantDone()
		o.streaming = false
	}
	o.Term.PrintToolCall(name, payload)
}

func (o *TerminalObserver) OnToolResult(name tools.Name, result string) {
	o.Term.PrintToolResult(result)
}

func (o *TerminalObserver) OnFinal(text string) {
	if o.streaming {
		o.Term.PrintAssistantDone()
		o.streaming = false
	}
}
