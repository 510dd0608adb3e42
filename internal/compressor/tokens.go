package compressor

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens returns a deterministic token count for text. It uses the
// cl100k_base BPE when available and falls back to a word-count heuristic
// (ceil(words * 4/3)) otherwise. Both paths are deterministic for a given
// input, which is what the budget contract requires.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}

	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}
