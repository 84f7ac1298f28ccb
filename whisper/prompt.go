package whisper

// Analyze validates a batch of prompts and locates the shared
// start-of-transcript index and prompt-length boundary.
//
// A well-formed prompt contains optional prefix text tokens, exactly one
// SOT token, then zero or more task control tokens in
// [sot_id..no_timestamps_id], after which generation begins. sot_index is
// the position of SOT; prompt_length is the smallest index >= sot_index
// whose token falls outside [sot_id..no_timestamps_id], or the prompt's
// length if every token from sot_index onward is a task control token.
//
// Every prompt in the batch must agree on both values; disagreement, or a
// prompt missing SOT entirely, is an invalid-argument failure. The
// text-token suffix after prompt_length may differ in length across the
// batch.
func Analyze(prompts [][]int32, va *VocabularyAdapter) (sotIndex int, promptLength int, err error) {
	if len(prompts) == 0 {
		return 0, 0, nil
	}

	sotIndex, promptLength, err = analyzeOne(prompts[0], va)
	if err != nil {
		return 0, 0, err
	}

	for i := 1; i < len(prompts); i++ {
		s, p, err := analyzeOne(prompts[i], va)
		if err != nil {
			return 0, 0, err
		}
		if s != sotIndex || p != promptLength {
			return 0, 0, invalidArgument(
				"prompt %d has (sot_index=%d, prompt_length=%d), batch expects (%d, %d)",
				i, s, p, sotIndex, promptLength)
		}
	}
	return sotIndex, promptLength, nil
}

func analyzeOne(prompt []int32, va *VocabularyAdapter) (sotIndex int, promptLength int, err error) {
	sotIndex = -1
	for i, id := range prompt {
		if id == va.SotID() {
			sotIndex = i
			break
		}
	}
	if sotIndex < 0 {
		return 0, 0, invalidArgument("prompt lacks SOT token (%d)", va.SotID())
	}

	promptLength = len(prompt)
	for i := sotIndex; i < len(prompt); i++ {
		if !isTaskControlToken(prompt[i], va) {
			promptLength = i
			break
		}
	}
	return sotIndex, promptLength, nil
}

func isTaskControlToken(id int32, va *VocabularyAdapter) bool {
	return id >= va.SotID() && id <= va.NoTimestampsID()
}
