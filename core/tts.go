package core

// SynthesisResult is what a remote speech provider hands back: either a clip or the reason
// there is none. Exactly one of the fields is set.
type SynthesisResult struct {
	Clip    *AudioChunk
	Failure *ProviderError
}

func (r SynthesisResult) OK() bool {
	return r.Clip != nil && r.Failure == nil
}
