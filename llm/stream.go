package llm

// AccumulateStream drains events, concatenating text deltas and tracking the
// latest usage and finish reason, until the channel closes or an event
// carries an error. onText, if non-nil, is called once per delta as it
// arrives — this is the hook the agent orchestrator uses to render tokens to
// the terminal and to poll the interrupt controller between chunks (spec
// §9). A nil onText is used by internal callers (compaction summarization,
// batch SendMessage) that only want the final accumulated Response.
func AccumulateStream(events <-chan StreamEvent, onText func(string)) (*Response, error) {
	resp := &Response{}
	for ev := range events {
		if ev.Err != nil {
			return resp, ev.Err
		}
		if ev.TextDelta != "" {
			resp.Content += ev.TextDelta
			if onText != nil {
				onText(ev.TextDelta)
			}
		}
		if ev.FinishReason != "" {
			resp.FinishReason = ev.FinishReason
		}
		if ev.Usage != nil {
			resp.Usage = *ev.Usage
		}
		if ev.Done {
			break
		}
	}
	return resp, nil
}
